package climate

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// DefaultI2CAddress is the BME280's factory-default bus address.
const DefaultI2CAddress = 0x76

// BME280 is the production probe: a Bosch BME280 on the I2C bus.
type BME280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// NewBME280 opens the I2C bus ("" selects the platform default) and
// initializes the sensor at the given address.
func NewBME280(busName string, address uint16) (*BME280, error) {
	if address == 0 {
		address = DefaultI2CAddress
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("opening I2C bus: %w", err)
	}

	dev, err := bmxx80.NewI2C(bus, address, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("initializing BME280 at 0x%02x: %w", address, err)
	}

	return &BME280{bus: bus, dev: dev}, nil
}

// Sense performs one atomic readout.
func (p *BME280) Sense() (temperature, humidity float64, err error) {
	var env physic.Env
	if err = p.dev.Sense(&env); err != nil {
		return 0, 0, fmt.Errorf("sensing: %w", err)
	}

	// Humidity is a fixed point integer at a precision of 0.00001%rH.
	return env.Temperature.Celsius(), float64(env.Humidity) / 100000.0, nil
}

// Close halts the sensor and releases the bus.
func (p *BME280) Close() error {
	if err := p.dev.Halt(); err != nil {
		_ = p.bus.Close()
		return fmt.Errorf("halting sensor: %w", err)
	}
	return p.bus.Close()
}
