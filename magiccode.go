// Package magiccode issues and verifies short-lived one-time codes
// for passwordless login and operation confirmation, with sliding
// window flood protection at IP and user scope.
package magiccode

import (
	"github.com/tech-arch1tect/magiccode/app"
)

type App = app.App

type Builder = app.AppBuilder

func New() *Builder {
	return app.NewApp()
}
