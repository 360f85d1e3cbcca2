package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/zenith/internal/chat/client"
	"github.com/zenith/internal/speech"
)

// ChatCommand returns an interactive terminal chat against a running relay
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to Yuri from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Base URL of a running ZENITH server",
				Value: "http://localhost:8888",
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "Article title to chat in the context of",
			},
			&cli.StringFlag{
				Name:  "excerpt",
				Usage: "Article excerpt to seed the conversation with",
			},
			&cli.BoolFlag{
				Name:  "speak",
				Usage: "Read Yuri's replies aloud",
			},
			&cli.StringFlag{
				Name:  "lang",
				Usage: "Speech language tag",
				Value: "en-US",
			},
		},
		Action: runChat,
	}
}

func runChat(c *cli.Context) error {
	ctx := c.Context

	transport := client.NewHTTPTransport(c.String("server"))
	session := client.NewSession(transport, c.String("title"))
	session.OnDelta = func(delta string) {
		fmt.Print(delta)
	}

	var synth speech.Synthesizer
	if c.Bool("speak") {
		synth = speech.NewCommandSynthesizer("")
		defer synth.Stop()
	}

	speakLast := func() {
		if synth == nil {
			return
		}
		msgs := session.Messages()
		if len(msgs) == 0 {
			return
		}
		last := msgs[len(msgs)-1]
		if err := synth.Speak(ctx, last.Text(), c.String("lang")); err != nil {
			fmt.Fprintf(os.Stderr, "speech: %v\n", err)
		}
	}

	fmt.Println("Yuri is listening. Type a question, or /quit to leave.")

	if excerpt := c.String("excerpt"); excerpt != "" {
		fmt.Print("yuri> ")
		if err := session.Open(ctx, excerpt); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		} else {
			fmt.Println()
			speakLast()
		}
	} else {
		session.Open(ctx, "")
	}
	defer session.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			break
		}
		if line == "" {
			continue
		}

		fmt.Print("yuri> ")
		if err := session.Send(ctx, line); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v (partial reply kept)\n", err)
			continue
		}
		fmt.Println()
		speakLast()
	}

	return scanner.Err()
}
