package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/moimapp/moim/internal/app"
	"github.com/moimapp/moim/internal/session"
)

func main() {
	accountFlag := flag.String("account", "", "account name (overrides config default)")
	configFlag := flag.String("config", "", "config file path (overrides ~/.moim/config.toml)")
	flag.Parse()

	account := session.Resolve(*accountFlag, *configFlag)
	if err := session.ValidateName(account); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	daemon := fx.New(
		app.Module(app.Params{Account: account, ConfigPath: *configFlag}),
	)

	daemon.Run()
}
