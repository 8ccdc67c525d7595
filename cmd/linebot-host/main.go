// Command linebot-host is the host side of the command link: it opens
// a serial port to the robot, lets an operator issue typed commands
// interactively, and reports their Ack/Done lifecycle as frames arrive.
//
// Grounded on host/cmd/gopper-host/main.go: the flag set
// (device/baud/verbose) and the "connect, then drop into an interactive
// command loop" shape are carried over, but the command set and
// protocol are this repository's own 0x55-framed link rather than the
// host/mcu's Klipper dictionary/identify exchange.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"linebot/internal/hostserial"
	"linebot/internal/link"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate")
	verbose = flag.Bool("verbose", false, "Enable debug-level logging")
)

func main() {
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := log.With().Str("component", "linebot-host").Logger()

	cfg := hostserial.DefaultConfig(*device)
	cfg.Baud = *baud

	logger.Info().Str("device", *device).Int("baud", *baud).Msg("connecting")
	port, err := hostserial.Open(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open serial port")
		os.Exit(1)
	}
	defer port.Close()

	l := link.New()
	start := time.Now()
	now := func() link.Ticks { return link.Ticks(time.Since(start).Milliseconds()) }

	go readLoop(port, l, logger)
	go retryLoop(port, l, now, logger)

	logger.Info().Msg("connected; type 'help' for commands")
	runREPL(port, l, now, logger)
}

// readLoop feeds every byte received from port into the link's
// receiver, logging any decoded Ack/Done or deserialize error.
func readLoop(port hostserial.Port, l *link.Link, logger zerolog.Logger) {
	buf := make([]byte, 1)
	for {
		n, err := port.Read(buf)
		if err != nil {
			logger.Error().Err(err).Msg("serial read error")
			return
		}
		if n == 0 {
			continue
		}
		msg, err := l.HandleByte(buf[0])
		if err != nil {
			logger.Warn().Err(err).Msg("frame error")
			continue
		}
		if msg == nil {
			continue
		}
		switch msg.Kind {
		case link.MsgAck:
			logger.Info().Uint32("id", msg.ID).Msg("command acked")
		case link.MsgDone:
			logger.Info().Uint32("id", msg.ID).Msg("command finished")
			l.AckFinish(msg.ID)
		}
	}
}

// retryLoop periodically re-enqueues any Command frame that has gone
// unacknowledged past link.RetryTimeout, and drains the outbound queue
// to the wire (spec.md §4.7 "Retransmission").
func retryLoop(port hostserial.Port, l *link.Link, now func() link.Ticks, logger zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if n := l.RetryTimedOut(now()); n > 0 {
			logger.Debug().Int("count", n).Msg("retransmitted timed-out commands")
			drainOutbound(port, l, logger)
		}
	}
}

func drainOutbound(port hostserial.Port, l *link.Link, logger zerolog.Logger) {
	for {
		frame, ok := l.PopOutbound()
		if !ok {
			return
		}
		if _, err := port.Write(frame); err != nil {
			logger.Error().Err(err).Msg("serial write error")
			return
		}
	}
}

func runREPL(port hostserial.Port, l *link.Link, now func() link.Ticks, logger zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		var cmd link.Command
		switch fields[0] {
		case "quit", "exit", "q":
			return

		case "help", "?":
			printHelp()
			continue

		case "stop":
			cmd = link.Stop()

		case "speed":
			if len(fields) != 3 {
				fmt.Println("usage: speed <left> <right>")
				continue
			}
			left, err1 := strconv.Atoi(fields[1])
			right, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil {
				fmt.Println("speed: left and right must be integers")
				continue
			}
			cmd = link.SetSpeed(int32(left), int32(right))

		case "open":
			cmd = link.OpenGripper()

		case "close":
			cmd = link.CloseGripper()

		case "lift":
			cmd = link.LiftGripper()

		case "lower":
			cmd = link.LowerGripper()

		default:
			fmt.Printf("unknown command: %s (type 'help')\n", fields[0])
			continue
		}

		id, err := l.Execute(cmd, now())
		if err != nil {
			logger.Error().Err(err).Msg("execute failed")
			continue
		}
		drainOutbound(port, l, logger)
		logger.Info().Uint32("id", id).Msg("command enqueued")
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  stop              - stop both wheels and the lift")
	fmt.Println("  speed <l> <r>     - set left/right wheel speed (cm/s)")
	fmt.Println("  open              - open the gripper")
	fmt.Println("  close             - close the gripper")
	fmt.Println("  lift              - raise the lift platform")
	fmt.Println("  lower             - lower the lift platform")
	fmt.Println("  quit/exit/q       - exit")
	fmt.Println()
}
