package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

func main() {
	parser := flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	addCmd(parser, "serve", "Serve the store over HTTP", `
Serve the in-memory document store over HTTP until signaled to exit
(SIGINT or SIGTERM).
`, &cmdServe{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.WithField("err", err).Error("mynosqld failed")
		os.Exit(1)
	}
}

func addCmd(to interface {
	AddCommand(string, string, string, interface{}) (*flags.Command, error)
}, name, short, long string, iface interface{}) *flags.Command {
	cmd, err := to.AddCommand(name, short, long, iface)
	if err != nil {
		log.WithField("err", err).Fatal("failed to register command")
	}
	return cmd
}
