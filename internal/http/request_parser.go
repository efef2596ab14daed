// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and sanitizing form posts.

package http

import (
	"net/http"
	"net/url"
)

// maxFormBytes bounds the size of any form post.
const maxFormBytes = 64 << 10

type (
	loginForm struct {
		Username string
		Email    string
		Password string
	}

	expenseForm struct {
		Date   string
		Desc   string
		Amount string
	}
)

// parseForm limits the body size and parses the urlencoded form.
func parseForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm, nil
}

func formValue(form url.Values, key string) string {
	return sanitizeInput(form.Get(key))
}

func parseLoginForm(w http.ResponseWriter, r *http.Request) (loginForm, error) {
	form, err := parseForm(w, r)
	if err != nil {
		return loginForm{}, err
	}
	return loginForm{
		Username: formValue(form, "username"),
		Email:    formValue(form, "email"),
		Password: formValue(form, "password"),
	}, nil
}

func parseExpenseForm(w http.ResponseWriter, r *http.Request) (expenseForm, error) {
	form, err := parseForm(w, r)
	if err != nil {
		return expenseForm{}, err
	}
	return expenseForm{
		Date:   formValue(form, "date"),
		Desc:   formValue(form, "desc"),
		Amount: formValue(form, "amount"),
	}, nil
}

// parseField reads a single sanitized field from the posted form.
func parseField(w http.ResponseWriter, r *http.Request, key string) (string, error) {
	form, err := parseForm(w, r)
	if err != nil {
		return "", err
	}
	return formValue(form, key), nil
}
