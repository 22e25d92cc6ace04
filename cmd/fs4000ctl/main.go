// Command fs4000ctl drives a Canon FS4000US-class film scanner directly,
// without the HTTP server, for bench testing and one-off acquisitions.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/fs4000scan/imgrec"
	"github.com/nasa-jpl/fs4000scan/session"
)

func spinnerConfig(msg string) yacspin.Config {
	return yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " " + msg,
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
}

func main() {
	frame := flag.Int("frame", 1, "frame number within the mounted holder")
	autoExpose := flag.Bool("auto-expose", true, "run the auto-exposure pre-pass before the real scan")
	outRoot := flag.String("out", ".", "directory to write the raw scan buffer into")
	prefix := flag.String("prefix", "fs4000_", "filename prefix for the raw scan buffer")
	inquiryOnly := flag.Bool("inquiry", false, "print the device's INQUIRY response and exit")
	flag.Parse()

	sess, err := session.Open()
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer sess.Close()

	if *inquiryOnly {
		inq, err := sess.Inquiry()
		if err != nil {
			log.Fatalf("inquiry: %v", err)
		}
		fmt.Printf("vendor=%q product=%q revision=%q canonical=%v\n",
			inq.Vendor(), inq.Product(), inq.Revision(), inq.IsCanonical())
		return
	}

	spinner, err := yacspin.New(spinnerConfig("connecting"))
	if err != nil {
		log.Fatalf("spinner: %v", err)
	}
	if err := spinner.Start(); err != nil {
		log.Fatalf("spinner start: %v", err)
	}

	sess.SetFeedback(func(msg string) { spinner.Message(msg) })
	sess.SetAbort(func() bool { return false })

	if err := sess.Scan(*frame-1, *autoExpose); err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		os.Exit(1)
	}

	buf, ok := sess.Drain()
	if !ok {
		spinner.StopFailMessage("scan completed but produced no buffer")
		spinner.StopFail()
		os.Exit(1)
	}

	rec := &imgrec.Recorder{Root: *outRoot, Prefix: *prefix}
	fn, err := rec.WriteBuffer(buf)
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		os.Exit(1)
	}

	spinner.StopMessage(fmt.Sprintf("wrote %s (%d lines x %d bytes)", fn, buf.Lines, buf.LineBytes))
	spinner.Stop()
}
