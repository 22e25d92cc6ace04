// Command fs4000srv exposes a Canon FS4000US-class film scanner over HTTP.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/fs4000scan/generichttp"
	"github.com/nasa-jpl/fs4000scan/generichttp/scanner"
	"github.com/nasa-jpl/fs4000scan/imgrec"
	"github.com/nasa-jpl/fs4000scan/serveraccess"
	"github.com/nasa-jpl/fs4000scan/session"
)

var (
	// Version is the version number, typically injected via ldflags with git build.
	Version = "1"

	// ConfigFileName is the on-disk config file fs4000srv reads at startup.
	ConfigFileName = "fs4000-http.yml"
	k              = koanf.New(".")
)

type recorderConfig struct {
	Root   string `yaml:"Root"`
	Prefix string `yaml:"Prefix"`
}

type paramsConfig struct {
	AGain      [3]uint16 `yaml:"AGain"`
	AOffset    [3]int    `yaml:"AOffset"`
	Shutter    [3]uint16 `yaml:"Shutter"`
	Boost      [3]uint16 `yaml:"Boost"`
	Speed      int       `yaml:"Speed"`
	InMode     int       `yaml:"InMode"`
	MaxShutter uint16    `yaml:"MaxShutter"`
	AutoExp    int       `yaml:"AutoExp"`
	Margin     int       `yaml:"Margin"`
}

type config struct {
	Addr     string         `yaml:"Addr"`
	Root     string         `yaml:"Root"`
	Recorder recorderConfig `yaml:"Recorder"`
	Params   paramsConfig   `yaml:"Params"`
}

func defaultConfig() config {
	p := session.DefaultParams()
	return config{
		Addr: ":8000",
		Root: "/",
		Params: paramsConfig{
			AGain:      p.AGain,
			AOffset:    p.AOffset,
			Shutter:    p.Shutter,
			Boost:      p.Boost,
			Speed:      p.Speed,
			InMode:     p.InMode,
			MaxShutter: p.MaxShutter,
			AutoExp:    p.AutoExp,
			Margin:     p.Margin,
		},
	}
}

func setupconfig() {
	k.Load(structs.Provider(defaultConfig(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") {
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `fs4000srv exposes a Canon FS4000US-class film scanner over HTTP.

Usage:
	fs4000srv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `fs4000srv is configured via its .yaml file.  Keys are not case-sensitive.
mkconf writes the configuration file with the default values.

Params mirrors the device session defaults from the original backend: AGain,
AOffset, Shutter, Boost, Speed, InMode, MaxShutter, AutoExp, and Margin.
A second client attempting to reserve the scanner while one is already
active receives 409 Conflict from /notify-active.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("fs4000srv version %v\n", Version)
}

func run() {
	cfg := config{}
	k.Unmarshal("", &cfg)

	sess, err := session.Open()
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Close()

	p := cfg.Params
	sess.SetParams(session.Params{
		AGain:      p.AGain,
		AOffset:    p.AOffset,
		Shutter:    p.Shutter,
		Boost:      p.Boost,
		Speed:      p.Speed,
		InMode:     p.InMode,
		MaxShutter: p.MaxShutter,
		AutoExp:    p.AutoExp,
		Margin:     p.Margin,
	})

	rec := &imgrec.Recorder{Root: cfg.Recorder.Root, Prefix: cfg.Recorder.Prefix}
	status := &serveraccess.ServerStatus{}

	sess.SetFeedback(func(msg string) { log.Println("scanner:", msg) })

	scn := scanner.NewHTTPScanner(sess)
	rt := scn.RT()
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/notify-active"}] = status.NotifyActive
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/release-active"}] = status.ReleaseActive
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/check-active"}] = status.CheckActive
	imgrec.NewHTTPWrapper(rec).Inject(rt)

	hndlrS := generichttp.SubMuxSanitize(cfg.Root)
	root := chi.NewRouter()
	mux := chi.NewRouter()
	root.Mount(hndlrS, mux)
	rt.Bind(mux)

	addr := cfg.Addr + cfg.Root
	log.Println("now listening for requests at", addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, root))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
