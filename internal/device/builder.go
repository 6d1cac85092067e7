package device

import (
	"fmt"
	"strings"

	"bacnet-events/internal/events/algorithms"
	eventapp "bacnet-events/internal/events/application"
	events "bacnet-events/internal/events/domain"
	"bacnet-events/internal/objects"
)

// Build materializes the configuration: registers notification classes,
// creates objects with their initial properties and enables the
// configured monitors on the engine.
func Build(cfg Config, registry *eventapp.ClassRegistry, store *objects.Store, engine *eventapp.Engine) error {
	for _, cc := range cfg.NotificationClasses {
		class, err := cc.Class()
		if err != nil {
			return err
		}
		registry.Register(class)
	}

	kinds := make(map[string]string, len(cfg.Objects))
	for _, oc := range cfg.Objects {
		ref, err := objects.ParseRef(oc.Ref)
		if err != nil {
			return err
		}
		kinds[oc.Ref] = oc.ValueKind
		store.Add(ref)
		store.WriteInternal(ref, objects.PropPresentValue, makeValue(oc.ValueKind, oc.InitialValue))
		store.WriteInternal(ref, objects.PropStatusFlags, events.StatusFlags{})
		store.WriteInternal(ref, objects.PropReliability, events.ReliabilityNoFaultDetected)
		if oc.Feedback != nil {
			store.WriteInternal(ref, objects.PropFeedbackValue, makeValue(oc.ValueKind, *oc.Feedback))
		}
	}

	for _, mc := range cfg.Monitors {
		ref, err := objects.ParseRef(mc.Object)
		if err != nil {
			return err
		}
		evaluator, err := buildEvaluator(mc, kinds[mc.Object])
		if err != nil {
			return err
		}
		monitorCfg := eventapp.MonitorConfig{
			NotificationClass: mc.NotificationClass,
			EventEnable:       mc.EventEnable,
			NotifyType:        events.NotifyType(mc.NotifyType),
			TimeDelay:         mc.TimeDelay.Std(),
			TimeDelayNormal:   mc.TimeDelayNormal.Std(),
		}
		fault := algorithms.NewChangeOfReliability()
		if mc.Monitored != "" {
			monitored, err := parseMonitored(mc.Monitored)
			if err != nil {
				return err
			}
			if err := engine.EnableAlgorithmicReporting(ref, monitored, evaluator, fault, monitorCfg); err != nil {
				return err
			}
			continue
		}
		if err := engine.EnableIntrinsicReporting(ref, evaluator, fault, monitorCfg); err != nil {
			return err
		}
	}
	return nil
}

func buildEvaluator(mc MonitorConfig, valueKind string) (algorithms.Evaluator, error) {
	switch mc.Algorithm {
	case "change-of-state":
		return algorithms.NewChangeOfState(makeValues(valueKind, mc.AlarmValues)), nil
	case "out-of-range":
		return algorithms.NewOutOfRange(mc.LowLimit, mc.HighLimit, mc.Deadband), nil
	case "command-failure":
		return algorithms.NewCommandFailure(), nil
	case "change-of-reliability":
		// Fault-only monitoring: the fault detector drives all
		// transitions.
		return algorithms.NewFaultOnly(), nil
	case "change-of-life-safety":
		return algorithms.NewChangeOfLifeSafety(
			lifeSafetyStates(mc.AlarmValues),
			lifeSafetyStates(mc.LifeSafetyAlarmValues),
		), nil
	case "buffer-ready":
		return algorithms.NewBufferReady(mc.BufferObject, mc.Threshold, 0), nil
	case "extended":
		return algorithms.NewExtended(mc.VendorID, mc.ExtendedType), nil
	}
	return nil, fmt.Errorf("device: unknown algorithm %q for %s", mc.Algorithm, mc.Object)
}

func makeValue(kind string, v float64) events.Value {
	switch kind {
	case "boolean":
		return events.BooleanValue(v != 0)
	case "unsigned":
		return events.UnsignedValue(uint32(v))
	case "enumerated":
		return events.EnumeratedValue(uint32(v))
	default:
		return events.RealValue(v)
	}
}

func makeValues(kind string, raw []uint32) []events.Value {
	out := make([]events.Value, 0, len(raw))
	for _, v := range raw {
		out = append(out, makeValue(kind, float64(v)))
	}
	return out
}

func lifeSafetyStates(raw []uint32) []events.LifeSafetyState {
	out := make([]events.LifeSafetyState, 0, len(raw))
	for _, v := range raw {
		out = append(out, events.LifeSafetyState(v))
	}
	return out
}

// parseMonitored parses "[device/]type.instance#property".
func parseMonitored(s string) (objects.PropertyRef, error) {
	var ref objects.PropertyRef
	rest := s
	if idx := strings.Index(rest, "/"); idx >= 0 {
		ref.Device = rest[:idx]
		rest = rest[idx+1:]
	}
	idx := strings.Index(rest, "#")
	if idx <= 0 || idx == len(rest)-1 {
		return ref, fmt.Errorf("device: malformed monitored reference %q", s)
	}
	object, err := objects.ParseRef(rest[:idx])
	if err != nil {
		return ref, err
	}
	ref.Object = object
	ref.Property = objects.Property(rest[idx+1:])
	return ref, nil
}
