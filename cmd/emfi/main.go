package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mastercactapus/emfi/attack"
	"github.com/mastercactapus/emfi/config"
	"github.com/mastercactapus/emfi/sensor"
	"github.com/mastercactapus/emfi/serial"
	"github.com/mastercactapus/emfi/stage"
	"github.com/mastercactapus/emfi/station"
)

func main() {
	cfg := config.Load()

	host := flag.String("host", cfg.Host, "Hostname or IP address to bind to.")
	port := flag.Int("port", cfg.HTTPPort, "HTTP port (websocket endpoint at /ws).")
	device := flag.String("serial", cfg.SerialDevice, "Serial device of the controller board.")
	simulate := flag.Bool("simulate", cfg.Simulate, "Simulate the connection to the controller board.")
	logDir := flag.String("attack-log-dir", cfg.AttackLogDir, "Directory for per-run attack log files.")
	webDir := flag.String("web-dir", cfg.WebDir, "Directory with the web interface assets.")
	verbose := flag.Bool("v", false, "Enable debug log level.")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if *verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	var sp serial.Port
	if *simulate {
		log.Error("Simulation active.")
		sp = serial.NewSim(log, 0)
	} else {
		p, err := serial.Open(*device, log)
		if err != nil {
			log.Errorf("Controller board unavailable. Simulation active: %v", err)
			sp = serial.NewSim(log, 0)
		} else {
			sp = p
		}
	}

	st := stage.New(sp, log)
	defer st.Close()

	// The real thermal sensor and cameras attach behind these
	// interfaces; with nothing wired up clients get placeholder
	// frames and a zero temperature.
	var thermalSrc sensor.ThermalSource
	var grabber sensor.FrameGrabber
	if *simulate {
		thermalSrc = &sensor.SimThermalSource{}
		grabber = sensor.SimGrabber{}
	}

	thermal := sensor.NewThermal(thermalSrc, log)
	thermal.Start()
	defer thermal.Stop()

	camera := sensor.NewCamera(grabber, log)
	calibration := sensor.NewCamera(grabber, log)

	reg := attack.NewRegistry()
	if err := reg.Register(attack.DryRunName, attack.NewDryRun); err != nil {
		log.Fatalf("register attacks: %v", err)
	}

	worker := attack.NewWorker(reg, st, thermal, *logDir, log)

	// Joystick sessions need a device mapping, wired in here when one
	// is available for the deployment.
	var joystick station.JoystickFactory

	sta := station.New(st, worker, thermal, joystick, log)

	srv := newServer(sta, thermal, camera, calibration, log)

	r := mux.NewRouter()
	r.HandleFunc("/ws", srv.handleWS)
	r.PathPrefix("/events/").Handler(srv.sse)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(*webDir)))

	httpSrv := &http.Server{
		Addr: fmt.Sprintf("%s:%d", *host, *port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Debugf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
			r.ServeHTTP(w, req)
		}),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Listening on %s", httpSrv.Addr)
		err := httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		srv.broadcastLoop(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Error("Exiting...")
		sta.Shutdown()
		return httpSrv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Error("Bye!")
}
