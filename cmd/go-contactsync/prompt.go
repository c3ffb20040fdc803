package main

import (
	"github.com/charmbracelet/huh"
)

// confirmForm asks a yes/no question on the terminal.
func confirmForm(title, affirmative, negative string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative(affirmative).
				Negative(negative).
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

// tokenForm reads a secret without echoing it.
func tokenForm(title string) (string, error) {
	var token string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&token),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return token, nil
}
