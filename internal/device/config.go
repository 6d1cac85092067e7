// Package device loads the monitored-object configuration and builds
// the property store, notification class registry and engine from it.
package device

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	events "bacnet-events/internal/events/domain"
)

// Duration is a yaml-parseable duration ("5s", "2m30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("device: duration %q must be like 5s or 2m30s", node.Value)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the device configuration file model.
type Config struct {
	Device              string          `yaml:"device"`
	NotificationClasses []ClassConfig   `yaml:"notification_classes"`
	Objects             []ObjectConfig  `yaml:"objects"`
	Monitors            []MonitorConfig `yaml:"monitors"`
}

// ClassConfig defines one notification class.
type ClassConfig struct {
	ID          uint32                `yaml:"id"`
	Name        string                `yaml:"name"`
	Priorities  [3]uint8              `yaml:"priorities"`
	AckRequired events.TransitionBits `yaml:"ack_required"`
	Recipients  []DestinationConfig   `yaml:"recipients"`
}

// DestinationConfig defines one recipient entry.
type DestinationConfig struct {
	Recipient   string                `yaml:"recipient"`
	ProcessID   uint32                `yaml:"process_id"`
	Confirmed   bool                  `yaml:"confirmed"`
	Days        []string              `yaml:"days"`
	From        string                `yaml:"from"`
	To          string                `yaml:"to"`
	Transitions events.TransitionBits `yaml:"transitions"`
}

// ObjectConfig declares one object and its initial present value.
type ObjectConfig struct {
	Ref          string   `yaml:"ref"`
	ValueKind    string   `yaml:"value_kind"`
	InitialValue float64  `yaml:"initial_value"`
	Feedback     *float64 `yaml:"feedback"`
}

// MonitorConfig declares event reporting for one object.
type MonitorConfig struct {
	Object            string                `yaml:"object"`
	Algorithm         string                `yaml:"algorithm"`
	Monitored         string                `yaml:"monitored"` // device/object#property; enrollment when set
	NotificationClass uint32                `yaml:"notification_class"`
	EventEnable       events.TransitionBits `yaml:"event_enable"`
	NotifyType        string                `yaml:"notify_type"`
	TimeDelay         Duration              `yaml:"time_delay"`
	TimeDelayNormal   Duration              `yaml:"time_delay_normal"`

	HighLimit float64 `yaml:"high_limit"`
	LowLimit  float64 `yaml:"low_limit"`
	Deadband  float64 `yaml:"deadband"`

	AlarmValues           []uint32 `yaml:"alarm_values"`
	LifeSafetyAlarmValues []uint32 `yaml:"life_safety_alarm_values"`

	BufferObject string `yaml:"buffer_object"`
	Threshold    uint32 `yaml:"threshold"`

	VendorID     uint32 `yaml:"vendor_id"`
	ExtendedType uint32 `yaml:"extended_type"`
}

// LoadConfig reads the config from the path in BACNET_DEVICE_CONFIG,
// or returns a small default when unset.
func LoadConfig() (Config, error) {
	path := os.Getenv("BACNET_DEVICE_CONFIG")
	if path == "" {
		return Config{Device: "device.1"}, nil
	}
	return LoadConfigFile(path)
}

// LoadConfigFile reads and validates a device config file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Device == "" {
		cfg.Device = "device.1"
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	classes := make(map[uint32]struct{}, len(c.NotificationClasses))
	for _, class := range c.NotificationClasses {
		if _, dup := classes[class.ID]; dup {
			return fmt.Errorf("device: duplicate notification class %d", class.ID)
		}
		classes[class.ID] = struct{}{}
	}
	for _, monitor := range c.Monitors {
		if monitor.Object == "" {
			return errors.New("device: monitor without object")
		}
		if _, ok := classes[monitor.NotificationClass]; !ok {
			return fmt.Errorf("device: monitor %s references unknown class %d", monitor.Object, monitor.NotificationClass)
		}
	}
	return nil
}

// Class converts a ClassConfig to the domain model.
func (c ClassConfig) Class() (events.NotificationClass, error) {
	class := events.NotificationClass{
		ID:   c.ID,
		Name: c.Name,
		Priorities: events.Priorities{
			events.Priority(c.Priorities[0]),
			events.Priority(c.Priorities[1]),
			events.Priority(c.Priorities[2]),
		},
		AckRequired: c.AckRequired,
	}
	for _, rc := range c.Recipients {
		dest, err := rc.Destination()
		if err != nil {
			return class, err
		}
		class.Recipients = append(class.Recipients, dest)
	}
	return class, nil
}

// Destination converts a DestinationConfig to the domain model.
func (c DestinationConfig) Destination() (events.Destination, error) {
	dest := events.Destination{
		Recipient:   c.Recipient,
		ProcessID:   c.ProcessID,
		Confirmed:   c.Confirmed,
		Transitions: c.Transitions,
	}
	if dest.Recipient == "" {
		return dest, errors.New("device: recipient required")
	}
	for _, name := range c.Days {
		day, err := parseWeekday(name)
		if err != nil {
			return dest, err
		}
		dest.Days = dest.Days.WithDay(day)
	}
	if c.From != "" || c.To != "" {
		from, err := parseDayTime(c.From)
		if err != nil {
			return dest, fmt.Errorf("device: recipient %s: %v", c.Recipient, err)
		}
		to, err := parseDayTime(c.To)
		if err != nil {
			return dest, fmt.Errorf("device: recipient %s: %v", c.Recipient, err)
		}
		if to <= from {
			return dest, fmt.Errorf("device: recipient %s: to must be after from", c.Recipient)
		}
		dest.FromTime = from
		dest.ToTime = to
	}
	return dest, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	case "tuesday", "tue":
		return time.Tuesday, nil
	case "wednesday", "wed":
		return time.Wednesday, nil
	case "thursday", "thu":
		return time.Thursday, nil
	case "friday", "fri":
		return time.Friday, nil
	case "saturday", "sat":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("device: unknown weekday %q", name)
}

// parseDayTime parses "HH:MM" into an offset from midnight.
func parseDayTime(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("time %q must be HH:MM", value)
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}
