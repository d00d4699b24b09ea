package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"aivoice/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	group := cli.StringP("group", "g", "", "Group to speak into")
	user := cli.StringP("user", "u", "", "User on whose behalf to speak")
	character := cli.StringP("character", "c", "", "Voice character or lucy-voice-* id")
	timeout := cli.DurationP("timeout", "t", 15*time.Second, "Reply timeout")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: aivoice-ctl [flags] ping | resolve | say <text>\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	if cli.NArg() == 0 {
		cli.Usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{
		Cmd:       cli.Arg(0),
		Text:      strings.Join(cli.Args()[1:], " "),
		Character: *character,
		GroupID:   *group,
		UserID:    *user,
	}

	reply, err := ipc.SendCommand(*socket, msg, *timeout)
	if err != nil {
		fmt.Println("aivoice not running:", err)
		os.Exit(1)
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}

	switch msg.Cmd {
	case ipc.CmdResolve:
		fmt.Printf("%s (known: %v)\n", reply.Voice, reply.Known)
	default:
		fmt.Println(reply.Result)
	}
}
