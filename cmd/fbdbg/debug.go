package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/JoshLWScott/fbdbg/internal/adapterfactory"
	"github.com/JoshLWScott/fbdbg/internal/console"
	"github.com/JoshLWScott/fbdbg/internal/logging"
	"github.com/JoshLWScott/fbdbg/internal/session"
)

// driverOptions carries the pieces launch.go/attach.go gather from cobra
// flags into the shared REPL driver.
type driverOptions struct {
	adapterType     string
	mode            string // "launch" | "attach"
	launchArgs      map[string]any
	attachArgs      map[string]any
	asyncStopThread *int64
}

// runDriver implements the top-level control flow spec.md §9 calls for:
// create the SessionCore, issue the initial launch/attach, run the
// console REPL until the user quits or the session reaches a terminal
// exit, and surface a FatalSessionError/ExpectedExit for main.go to turn
// into a process exit code.
func runDriver(opts driverOptions) error {
	log := logging.New(viperLogLevel())

	configs, err := loadAdapterConfigs()
	if err != nil {
		return errors.Wrap(err, "loading adapter config")
	}
	factory := adapterfactory.New(configs, log)

	term := console.NewTerminal(os.Stdout)
	core := session.New(factory, term, log, adapterfactory.DefaultClientID)

	dispatcher := console.NewDispatcher()
	console.RegisterBuiltins(dispatcher)

	descriptor := session.AdapterDescriptor{
		Type:            opts.adapterType,
		LaunchArgs:      opts.launchArgs,
		AttachArgs:      opts.attachArgs,
		AsyncStopThread: opts.asyncStopThread,
	}

	ctx := context.Background()
	var startErr error
	if opts.mode == "attach" {
		startErr = core.Attach(ctx, descriptor)
	} else {
		startErr = core.Launch(ctx, descriptor)
	}
	if startErr != nil {
		var fatal *session.FatalSessionError
		if errors.As(startErr, &fatal) {
			return fatal
		}
		return errors.Wrap(startErr, "starting debug session")
	}

	replDone := make(chan error, 1)
	go func() {
		replDone <- console.RunLoop(ctx, os.Stdin, term, core, dispatcher, "(fbdbg) ")
	}()

	for {
		select {
		case code, ok := <-core.ExitSignal():
			if !ok {
				return nil
			}
			if code == 0 {
				return &session.ExpectedExit{}
			}
			// code == -1: launch-mode termination with a relaunch already
			// in flight (spec.md §4.4); not a process-level exit, keep
			// serving the REPL against the new session.
		case err := <-replDone:
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			_ = core.Close(ctx)
			return nil
		}
	}
}
