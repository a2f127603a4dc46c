// Command easybusd polls Easybus instruments on a serial line, logs their
// readings and optionally republishes them over Modbus TCP.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	easybus "github.com/hootrhino/goeasybus"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	portName := flag.String("port", "", "serial port, overrides the configuration")
	address := flag.Int("address", 1, "channel address for -once")
	once := flag.Bool("once", false, "read value and unit of -address once and exit")
	flag.Parse()

	if err := run(*configPath, *portName, *address, *once); err != nil {
		fmt.Fprintf(os.Stderr, "easybusd: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path, port string) (*easybus.Config, error) {
	config := easybus.DefaultConfig()
	if path != "" {
		var err error
		if config, err = easybus.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if port != "" {
		config.Serial.Address = port
	}
	return config, config.Validate()
}

func newLogger(config easybus.LogConfig) (*easybus.SimpleLogger, error) {
	level, err := easybus.ParseLogLevel(config.Level)
	if err != nil {
		return nil, err
	}
	var output io.Writer = os.Stdout
	if config.File != "" {
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
	}
	return easybus.NewSimpleLogger(output, level, "easybusd"), nil
}

func run(configPath, port string, address int, once bool) error {
	config, err := loadConfig(configPath, port)
	if err != nil {
		return err
	}
	logger, err := newLogger(config.Log)
	if err != nil {
		return err
	}
	defer logger.Close()

	encoding, _ := easybus.ParseValueEncoding(config.Encoding)
	handler, err := easybus.OpenSerialHandler(config.Serial, encoding)
	if err != nil {
		return err
	}
	defer handler.Close()
	handler.SetLogger(logger)

	if once {
		if address < 0 || address > 255 {
			return fmt.Errorf("address %d out of range 0-255", address)
		}
		reading, err := handler.ReadReading(uint8(address))
		if err != nil {
			return err
		}
		fmt.Printf("%g %s\n", reading.Value, reading.Unit)
		return nil
	}

	channels, err := config.LoadChannels()
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels configured")
	}

	var gateway *easybus.ModbusGateway
	if config.Gateway.Enabled {
		if gateway, err = easybus.NewModbusGateway(channels); err != nil {
			return err
		}
		gateway.SetLogger(logger)
		if err := gateway.Start(config.Gateway.Listen); err != nil {
			return err
		}
		defer gateway.Stop()
	}

	mgr := easybus.NewEasybusChannelManager(handler, 16)
	if err := mgr.LoadChannels(channels); err != nil {
		return err
	}
	mgr.SetOnData(func(readings []easybus.Reading) {
		for _, r := range readings {
			if r.Err == nil {
				logger.Infof("%s (channel %d): %g %s", r.Tag, r.Address, r.Value, r.Unit)
			}
		}
		if gateway != nil {
			if err := gateway.Publish(readings); err != nil {
				logger.Errorf("gateway publish failed: %v", err)
			}
		}
	})
	mgr.SetOnError(func(err error) {
		logger.Warnf("%v", err)
	})

	poller := easybus.NewEasybusDevicePoller(config.PollInterval)
	poller.AddManager(mgr)
	poller.Start()
	logger.Infof("polling %d channels on %s every %v", len(channels), config.Serial.Address, config.PollInterval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Infof("stop requested")
	poller.Stop()
	return nil
}
