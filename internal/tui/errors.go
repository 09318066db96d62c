package tui

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/npezzotti/anon-chat/internal/chatapi"
	"github.com/npezzotti/anon-chat/internal/composer"
	"github.com/npezzotti/anon-chat/internal/directory"
	"github.com/npezzotti/anon-chat/internal/view"
)

// describe turns the error of a user action into the line shown in the
// status bar.
func describe(err error, maxUpload int64) string {
	var appErr *chatapi.AppError
	var transportErr *chatapi.TransportError

	switch {
	case errors.Is(err, composer.ErrFileTooLarge):
		return "File is too large. Maximum size is " + view.FormatFileSize(maxUpload) + "."
	case errors.Is(err, composer.ErrBusy):
		return "Still sending, please wait."
	case errors.Is(err, composer.ErrNoRoom):
		return "You are not in a room."
	case errors.Is(err, directory.ErrPasswordRequired):
		return "Please enter the room password."
	case errors.Is(err, directory.ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, fs.ErrNotExist):
		return "File not found."
	case errors.As(err, &appErr):
		if appErr.Message != "" {
			return appErr.Message
		}
		return "Request failed: " + http.StatusText(appErr.StatusCode)
	case errors.As(err, &transportErr):
		return "Could not reach the server. Please try again."
	default:
		return err.Error()
	}
}
