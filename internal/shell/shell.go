// Package shell is the interactive command loop a peer runs once it has
// registered with the tracker and started serving: share, get, list,
// chat, exit.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nodeswarm/filenet/internal/chat"
	"github.com/nodeswarm/filenet/internal/filepicker"
	"github.com/nodeswarm/filenet/internal/peer"
)

// Shell reads commands from In and writes prompts/results to Out.
type Shell struct {
	Agent    *peer.Agent
	Picker   filepicker.Picker
	In       *bufio.Scanner
	Out      io.Writer
	PeerName string
}

// New builds a Shell. picker is used for the share command; pass a
// filepicker.StdinPicker for headless runs or a filepicker.DialogPicker
// where a desktop session is available.
func New(agent *peer.Agent, picker filepicker.Picker, in io.Reader, out io.Writer, peerName string) *Shell {
	return &Shell{
		Agent:    agent,
		Picker:   picker,
		In:       bufio.NewScanner(in),
		Out:      out,
		PeerName: peerName,
	}
}

// Run loops reading commands until "exit" or until In has no more input.
// ctx is passed to the commands it runs; Run itself does not return when
// ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	for {
		fmt.Fprint(s.Out, "\ncommands: share | get | list | chat | exit\n> ")
		if !s.In.Scan() {
			return nil
		}
		line := strings.TrimSpace(s.In.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "share":
			s.handleShare(ctx)
		case "get":
			s.handleGet(ctx)
		case "list":
			s.handleList(ctx)
		case "chat":
			s.handleChat(ctx)
		case "exit":
			fmt.Fprintln(s.Out, "leaving the swarm...")
			if err := s.Agent.Unregister(ctx); err != nil {
				fmt.Fprintf(s.Out, "failed to unregister: %v\n", err)
			}
			return nil
		default:
			fmt.Fprintln(s.Out, "unrecognized command")
		}
	}
}

func (s *Shell) handleShare(ctx context.Context) {
	path, err := s.Picker.Pick()
	if err != nil {
		fmt.Fprintln(s.Out, "no file selected")
		return
	}
	fmt.Fprintf(s.Out, "selected %s\n", path)
	if err := s.Agent.Share(ctx, path); err != nil {
		fmt.Fprintf(s.Out, "failed to share %q: %v\n", path, err)
	}
}

func (s *Shell) handleGet(ctx context.Context) {
	maxAllowed := s.Agent.MaxConnections()
	fmt.Fprintf(s.Out, "you hold %d chunks; your parallel connection limit is %d\n", s.Agent.LocalChunkCount(), maxAllowed)
	fmt.Fprint(s.Out, "file name to download: ")
	if !s.In.Scan() {
		return
	}
	fileName := strings.TrimSpace(s.In.Text())
	if fileName == "" {
		fmt.Fprintln(s.Out, "invalid file name")
		return
	}

	chosen := s.promptConnections(maxAllowed)

	fmt.Fprintf(s.Out, "starting download with %d parallel connections...\n", chosen)
	start := time.Now()
	result, err := s.Agent.Get(ctx, fileName, chosen)
	if err != nil {
		fmt.Fprintf(s.Out, "download failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.Out, "downloaded %s (%d bytes) in %s (%.1f KB/s)\n", result.FileName, result.TotalBytes, time.Since(start).Round(time.Millisecond), result.ThroughputKBPerS)
}

func (s *Shell) promptConnections(maxAllowed int) int {
	for {
		fmt.Fprintf(s.Out, "number of parallel connections (1-%d): ", maxAllowed)
		if !s.In.Scan() {
			return 1
		}
		n, err := strconv.Atoi(strings.TrimSpace(s.In.Text()))
		if err == nil && n >= 1 && n <= maxAllowed {
			return n
		}
		fmt.Fprintf(s.Out, "invalid number, enter a value between 1 and %d\n", maxAllowed)
	}
}

func (s *Shell) handleList(ctx context.Context) {
	peers, err := s.Agent.List(ctx)
	if err != nil {
		fmt.Fprintf(s.Out, "failed to list peers: %v\n", err)
		return
	}
	for _, p := range peers {
		fmt.Fprintf(s.Out, "%s @ %s: %v\n", p.Name, p.Address, p.Files)
	}
}

func (s *Shell) handleChat(ctx context.Context) {
	fmt.Fprint(s.Out, "recipient address (e.g. 127.0.0.1:8000): ")
	if !s.In.Scan() {
		return
	}
	recipient := strings.TrimSpace(s.In.Text())

	fmt.Fprint(s.Out, "message: ")
	if !s.In.Scan() {
		return
	}
	body := strings.TrimSpace(s.In.Text())

	msg := chat.NewMessage(s.PeerName, body, time.Now())
	if err := chat.Send(ctx, recipient, msg); err != nil {
		fmt.Fprintf(s.Out, "failed to send message: %v\n", err)
	}
}
