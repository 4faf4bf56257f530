// Command bedmonitor runs the hospital bed monitor: periodic sensor
// acquisition, local alerting, status display, encrypted MQTT telemetry,
// serial uplink and network supervision, all as fixed-period tasks over
// a shared state store.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"bedmonitor-go/config"
	"bedmonitor-go/drivers/actuators"
	"bedmonitor-go/drivers/buttons"
	driverdisplay "bedmonitor-go/drivers/display"
	"bedmonitor-go/drivers/envsensor"
	"bedmonitor-go/drivers/tilt"
	"bedmonitor-go/logging"
	"bedmonitor-go/netmgr"
	"bedmonitor-go/sched"
	"bedmonitor-go/security"
	"bedmonitor-go/services/acquisition"
	"bedmonitor-go/services/alert"
	"bedmonitor-go/services/display"
	"bedmonitor-go/services/netmon"
	"bedmonitor-go/services/telemetry"
	"bedmonitor-go/services/uplink"
	"bedmonitor-go/state"
	"bedmonitor-go/x/syncx"
)

// taskCount feeds the display footer.
const taskCount = 6

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, "bedmonitor")
	if err != nil {
		zap.NewExample().Fatal("logger setup failed", zap.Error(err))
	}
	defer log.Sync() //nolint:errcheck

	codec, err := security.New([]byte(cfg.Security.Key), []byte(cfg.Security.IV))
	if err != nil {
		log.Fatal("payload codec setup failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := host.Init(); err != nil {
		log.Fatal("host peripheral init failed", zap.Error(err))
	}
	bus, err := i2creg.Open(cfg.Sensors.I2CBus)
	if err != nil {
		log.Fatal("i2c bus open failed",
			zap.String("bus", cfg.Sensors.I2CBus), zap.Error(err))
	}
	defer bus.Close()

	ledPin := mustPin(log, cfg.Alert.LEDPin)
	buzzerPin := mustPin(log, cfg.Alert.BuzzerPin)
	servoPin := mustPin(log, cfg.Alert.ServoPin)
	startPin := mustPin(log, cfg.Alert.StartPin)
	stopPin := mustPin(log, cfg.Alert.StopPin)

	var uplinkPort uplink.Port
	port, err := serial.Open(cfg.Uplink.Port, &serial.Mode{BaudRate: cfg.Uplink.Baud})
	if err != nil {
		// The uplink is a side channel; run without it rather than refuse
		// to monitor the bed.
		log.Warn("serial port unavailable, uplink records discarded",
			zap.String("port", cfg.Uplink.Port), zap.Error(err))
		uplinkPort = io.Discard
	} else {
		defer port.Close()
		uplinkPort = port
	}

	store := state.New(state.SafeRange{Min: cfg.Alert.AngleMin, Max: cfg.Alert.AngleMax},
		state.DefaultLockWait)

	radio := netmgr.NewProbeRadio(cfg.WiFi.ProbeAddr)
	wifi := netmgr.NewWiFi(radio, netmgr.WiFiConfig{
		MaxAttempts:    cfg.WiFi.MaxAttempts,
		AttemptTimeout: cfg.WiFi.AttemptTimeout,
		RetryBackoff:   cfg.WiFi.RetryBackoff,
	}, log.Named("wifi"))

	broker := netmgr.NewBroker(netmgr.BrokerConfig{
		Host:      cfg.MQTT.Host,
		Port:      cfg.MQTT.Port,
		ClientID:  cfg.MQTT.ClientID,
		KeepAlive: cfg.MQTT.KeepAlive,
	}, log.Named("broker"))
	broker.SetOnConnect(func() {
		ct, err := codec.Encrypt(telemetry.StatusOnline)
		if err != nil {
			return
		}
		if err := broker.Publish(cfg.MQTT.Topics.Status, ct); err != nil {
			log.Warn("online announcement failed", zap.Error(err))
		}
	})
	defer broker.Close()

	sensorBus := syncx.NewTimedMutex()
	displayBus := syncx.NewTimedMutex()

	acqSvc := acquisition.New(store, sensorBus,
		tilt.New(bus, cfg.Sensors.TiltAddr),
		envsensor.New(bus, cfg.Sensors.EnvAddr),
		log.Named("acquisition"))
	alertSvc := alert.New(store,
		actuators.NewIndicator(ledPin),
		actuators.NewBeeper(buzzerPin),
		actuators.NewServo(servoPin),
		alert.Config{AngleTarget: cfg.Alert.AngleTarget},
		log.Named("alert"))
	screen := &driverdisplay.LogRenderer{Log: log.Named("screen")}
	dispSvc := display.New(store, displayBus, screen, taskCount, log.Named("display"))
	teleSvc := telemetry.New(store, broker, wifi, codec,
		cfg.MQTT.Topics, cfg.MQTT.PublishPause, log.Named("telemetry"))

	watcher := buttons.NewWatcher(startPin, stopPin,
		time.Duration(cfg.Alert.DebounceMS)*time.Millisecond, log.Named("buttons"))
	if err := watcher.Start(ctx); err != nil {
		log.Fatal("button watcher start failed", zap.Error(err))
	}
	upSvc := uplink.New(store, uplinkPort, watcher.Events(), log.Named("uplink"))
	monSvc := netmon.New(store, wifi, broker, log.Named("netmon"))

	// Startup bring-up: sensors and network in parallel, with a boot
	// frame on the screen while it runs. Failures are logged, never
	// fatal; the periodic tasks retry on their own.
	screen.Render(driverdisplay.Frame{ //nolint:errcheck
		Title:    display.Title,
		RangeMsg: "Iniciando...",
		TempLine: "Temp: Lendo...",
		HumLine:  "Umid: Lendo...",
		Tasks:    taskCount,
	})
	boot, bootCtx := errgroup.WithContext(ctx)
	boot.Go(func() error {
		acqSvc.Init(bootCtx)
		return nil
	})
	boot.Go(func() error {
		if wifi.Connect(bootCtx) {
			broker.Connect(bootCtx)
		}
		store.UpdateConnectivity(wifi.Connected(), broker.Connected())
		return nil
	})
	boot.Wait() //nolint:errcheck
	dispSvc.Tick(ctx)

	scheduler := sched.New(log.Named("sched"))
	scheduler.Add(alertSvc.Task())
	scheduler.Add(acqSvc.Task())
	scheduler.Add(dispSvc.Task())
	scheduler.Add(monSvc.Task())
	scheduler.Add(teleSvc.Task())
	scheduler.Add(upSvc.Task())

	log.Info("bed monitor running",
		zap.String("broker", cfg.MQTT.BrokerAddr()),
		zap.Int("tasks", taskCount))
	scheduler.Start(ctx)
	scheduler.Wait()
	log.Info("bed monitor stopped")
}

func mustPin(log *zap.Logger, name string) gpio.PinIO {
	p := gpioreg.ByName(name)
	if p == nil {
		log.Fatal("gpio pin not found", zap.String("pin", name))
	}
	return p
}
