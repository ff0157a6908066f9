package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/driverfleet/driverfleet/cmd/dfleet-repo/app"
)

func main() {
	app.NewApp().Run()
}
