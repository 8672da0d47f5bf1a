// Package terminal is the concrete, swappable terminal I/O adapter: it
// is the only package in this module that imports promptui.
// internal/press and internal/purger depend on the internal/prompt
// interface, not on this package directly, so a test double or an
// alternate frontend can stand in without touching either.
package terminal

import "github.com/manifoldco/promptui"

// Prompter implements prompt.Prompter using promptui's arrow-key select
// and free-text prompt widgets.
type Prompter struct{}

// New creates a terminal Prompter.
func New() Prompter { return Prompter{} }

// Select renders items as a promptui.Select menu and returns the chosen
// index.
func (Prompter) Select(label string, items []string) (int, error) {
	sel := promptui.Select{
		Label: label,
		Items: items,
		Size:  len(items),
	}
	idx, _, err := sel.Run()
	return idx, err
}

// Input reads one line of free text via promptui.Prompt.
func (Prompter) Input(label string) (string, error) {
	p := promptui.Prompt{Label: label}
	return p.Run()
}
