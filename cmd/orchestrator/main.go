// Command orchestrator owns a playback pipeline's lifecycle: it loads
// xpuSetting.conf, spawns the loader/converter/dsp/sink stage binaries
// wired pipe-to-pipe, and exposes start/pause/resume/stop control to a
// single foreground session or a backgrounded daemon.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/richinsley/audiostagepipe/internal/orchestrator"
	"github.com/richinsley/audiostagepipe/internal/perr"
)

func main() {
	daemon := flag.Bool("daemon", false, "fork into the background and exit once the background process has started")
	foreground := flag.Bool("foreground", false, "run the pipeline in the foreground, blocking until interrupted")
	status := flag.Bool("status", false, "report whether an orchestrator instance is running, and exit")
	stop := flag.Bool("stop", false, "stop the running orchestrator instance, and exit")
	restart := flag.Bool("restart", false, "stop a running instance, then start a new one per the given flags")
	reload := flag.Bool("reload", false, "send SIGHUP to the running instance, and exit (the instance only logs it: live reload is not implemented)")

	pidFile := flag.String("pid-file", "orchestrator.pid", "single-instance lock file")
	configFile := flag.String("config", "xpuSetting.conf", "INI settings file")
	input := flag.String("i", "", "input file for the loader stage (required to start a pipeline)")
	useDSP := flag.Bool("dsp", false, "include the dsp stage between converter and sink")
	volume := flag.Float64("volume", 100, "volume percent, 0..200, forwarded to the dsp stage when enabled")
	eqPreset := flag.String("eq", "flat", "EQ preset forwarded to the dsp stage when enabled")

	loaderBin := flag.String("loader-bin", "loader", "path to the loader stage binary")
	converterBin := flag.String("converter-bin", "converter", "path to the converter stage binary")
	dspBin := flag.String("dsp-bin", "dsp", "path to the dsp stage binary")
	sinkBin := flag.String("sink-bin", "sink", "path to the sink stage binary")

	help := flag.Bool("help", false, "show this help message")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *help {
		fmt.Fprintln(os.Stderr, "orchestrator [--daemon|--foreground|--status|--stop|--restart|--reload] -i <input_file> [flags]")
		flag.PrintDefaults()
		return
	}
	if *version {
		fmt.Println("orchestrator 1.0.0")
		return
	}

	switch {
	case *status:
		reportStatus(*pidFile)
		return
	case *stop:
		stopRunning(*pidFile)
		return
	case *reload:
		signalRunning(*pidFile, syscall.SIGHUP, "reload")
		return
	}

	if *input == "" {
		log.Fatalf("orchestrator: -i <input_file> is required to start a pipeline")
	}

	if cfg, err := orchestrator.LoadConfig(*configFile); err == nil {
		applyConfigOverrides(cfg, useDSP, volume, eqPreset)
	}

	specs := buildSpecs(*input, *useDSP, *volume, *eqPreset, *loaderBin, *converterBin, *dspBin, *sinkBin)

	if *restart {
		stopRunning(*pidFile)
	}

	if *daemon {
		runAsDaemon()
		return
	}

	if !*foreground && !*restart {
		log.Printf("orchestrator: neither --daemon nor --foreground given, defaulting to --foreground")
	}
	runForeground(*pidFile, specs)
}

// applyConfigOverrides layers xpuSetting.conf's [dsp] section under
// whatever the command line already set, so CLI flags always win.
func applyConfigOverrides(cfg *orchestrator.Config, useDSP *bool, volume *float64, eqPreset *string) {
	if v, ok := cfg.Get("dsp", "enabled"); ok && !flagWasSet("dsp") {
		*useDSP = v.Bool
	}
	if v, ok := cfg.Get("dsp", "volume"); ok && !flagWasSet("volume") {
		*volume = v.Float
	}
	if v, ok := cfg.Get("dsp", "eq_preset"); ok && !flagWasSet("eq") {
		*eqPreset = v.Str
	}
}

// flagWasSet reports whether name was explicitly passed on the command
// line, so config values only fill in unset flags.
func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func buildSpecs(input string, useDSP bool, volume float64, eqPreset, loaderBin, converterBin, dspBin, sinkBin string) []orchestrator.StageSpec {
	specs := []orchestrator.StageSpec{
		{Kind: orchestrator.StageLoader, Path: loaderBin, Args: []string{input}},
		{Kind: orchestrator.StageConverter, Path: converterBin, Args: nil},
	}
	if useDSP {
		specs = append(specs, orchestrator.StageSpec{
			Kind: orchestrator.StageDSP,
			Path: dspBin,
			Args: []string{"--volume", fmt.Sprintf("%g", volume), "--eq", eqPreset},
		})
	}
	specs = append(specs, orchestrator.StageSpec{Kind: orchestrator.StageSink, Path: sinkBin, Args: nil})
	return specs
}

// runForeground acquires the instance lock, starts the pipeline, and blocks
// until SIGINT/SIGTERM or the pipeline dies on its own.
func runForeground(pidFile string, specs []orchestrator.StageSpec) {
	lock, err := orchestrator.Acquire(pidFile)
	if err != nil {
		log.Fatalf("orchestrator: %v", err)
	}
	defer lock.Release()

	o := orchestrator.New()
	if err := o.Start(specs); err != nil {
		log.Fatalf("orchestrator: failed to start pipeline: %v", err)
	}
	log.Printf("orchestrator: pipeline running (pid %d)", os.Getpid())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for s := range sig {
		switch s {
		case syscall.SIGHUP:
			log.Printf("orchestrator: SIGHUP received; live config reload is not implemented")
		default:
			log.Printf("orchestrator: %s received, stopping pipeline", s)
			_ = o.Stop()
			return
		}
	}
}

// runAsDaemon re-executes the current binary in the background with
// --foreground and a detached session, then returns as soon as the child
// has started; it does not wait for the child to write the pid file.
func runAsDaemon() {
	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a == "--daemon" || a == "-daemon" {
			continue
		}
		args = append(args, a)
	}
	args = append(args, "--foreground")

	cmd := exec.Command(os.Args[0], args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		log.Fatalf("orchestrator: failed to open %s: %v", os.DevNull, err)
	}
	defer devnull.Close()
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull

	if err := cmd.Start(); err != nil {
		log.Fatalf("orchestrator: failed to background the pipeline: %v", err)
	}
	log.Printf("orchestrator: backgrounded as pid %d", cmd.Process.Pid)
	_ = cmd.Process.Release()
}

func reportStatus(pidFile string) {
	pid, err := orchestrator.ReadPID(pidFile)
	if err != nil {
		fmt.Println("stopped")
		return
	}
	if alive(pid) {
		fmt.Printf("running (pid %d)\n", pid)
	} else {
		fmt.Println("stopped (stale pid file)")
	}
}

func stopRunning(pidFile string) {
	signalRunning(pidFile, syscall.SIGTERM, "stop")
}

func signalRunning(pidFile string, sig syscall.Signal, verb string) {
	pid, err := orchestrator.ReadPID(pidFile)
	if err != nil {
		log.Printf("orchestrator: no running instance to %s", verb)
		return
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		log.Printf("orchestrator: %v", err)
		return
	}
	if err := proc.Signal(sig); err != nil {
		log.Printf("orchestrator: failed to %s pid %d: %v", verb, pid, err)
		os.Exit(perr.KindOf(err).HTTPStatus())
	}
}

func alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
