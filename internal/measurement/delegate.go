package measurement

// Delegate receives session updates. Calls are made outside the controller
// lock and may arrive from sensor goroutines.
type Delegate interface {
	// AddSpeedMeasurement reports the latest speed with the running average
	// and maximum over valid points, nil while no point was valid.
	AddSpeedMeasurement(current float64, average, max *float64)

	// MeasuringStoppedByModel reports that the session ended without Stop.
	MeasuringStoppedByModel()

	TemperatureUpdated(celsius float64)
}

// ValidityObserver is an optional Delegate extension notified when the
// overall or dynamics validity flips.
type ValidityObserver interface {
	ChangedValidity(isValid, dynamicsIsValid bool)
}

// Delegates fans updates out to several delegates in order.
type Delegates []Delegate

func (ds Delegates) AddSpeedMeasurement(current float64, average, max *float64) {
	for _, d := range ds {
		d.AddSpeedMeasurement(current, average, max)
	}
}

func (ds Delegates) MeasuringStoppedByModel() {
	for _, d := range ds {
		d.MeasuringStoppedByModel()
	}
}

func (ds Delegates) TemperatureUpdated(celsius float64) {
	for _, d := range ds {
		d.TemperatureUpdated(celsius)
	}
}

func (ds Delegates) ChangedValidity(isValid, dynamicsIsValid bool) {
	for _, d := range ds {
		if o, ok := d.(ValidityObserver); ok {
			o.ChangedValidity(isValid, dynamicsIsValid)
		}
	}
}

type nopDelegate struct{}

func (nopDelegate) AddSpeedMeasurement(float64, *float64, *float64) {}
func (nopDelegate) MeasuringStoppedByModel()                        {}
func (nopDelegate) TemperatureUpdated(float64)                      {}
