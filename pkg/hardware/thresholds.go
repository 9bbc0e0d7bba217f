package hardware

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/dougsko/fmd/pkg/logging"
)

// ThresholdProfile holds optional search and AF tuning thresholds.
// Unset fields leave the device default in place.
type ThresholdProfile struct {
	SearchAlgorithm  *int32 `yaml:"search_algorithm,omitempty"`
	SINRFirstStage   *int32 `yaml:"sinr_first_stage,omitempty"`
	RMSSIFirstStage  *int32 `yaml:"rmssi_first_stage,omitempty"`
	SINRFinalStage   *int32 `yaml:"sinr,omitempty"`
	IntfLowTh        *int32 `yaml:"intf_low_th,omitempty"`
	IntfHighTh       *int32 `yaml:"intf_high_th,omitempty"`
	SINRSamples      *int32 `yaml:"sinr_samples,omitempty"`
	AFRMSSIThreshold *int32 `yaml:"af_rmssi_th,omitempty"`
	AFRMSSISamples   *int32 `yaml:"af_rmssi_samples,omitempty"`
	GoodChRMSSITh    *int32 `yaml:"good_ch_rmssi_th,omitempty"`
}

type thresholdParam struct {
	name     string
	control  ControlID
	min, max int32
	value    func(p *ThresholdProfile) *int32
}

var thresholdParams = []thresholdParam{
	{"search_algorithm", CtrlSearchAlgorithm, 0, 1, func(p *ThresholdProfile) *int32 { return p.SearchAlgorithm }},
	{"sinr_first_stage", CtrlSINRFirstStage, -128, 127, func(p *ThresholdProfile) *int32 { return p.SINRFirstStage }},
	{"rmssi_first_stage", CtrlRMSSIFirstStage, -128, 127, func(p *ThresholdProfile) *int32 { return p.RMSSIFirstStage }},
	{"sinr", CtrlSINRFinalStage, -128, 127, func(p *ThresholdProfile) *int32 { return p.SINRFinalStage }},
	{"intf_low_th", CtrlIntfLowTh, 0, 255, func(p *ThresholdProfile) *int32 { return p.IntfLowTh }},
	{"intf_high_th", CtrlIntfHighTh, 0, 255, func(p *ThresholdProfile) *int32 { return p.IntfHighTh }},
	{"sinr_samples", CtrlSINRSamples, 0, 255, func(p *ThresholdProfile) *int32 { return p.SINRSamples }},
	{"af_rmssi_th", CtrlAFRMSSIThreshold, 0, 65535, func(p *ThresholdProfile) *int32 { return p.AFRMSSIThreshold }},
	{"af_rmssi_samples", CtrlAFRMSSISamples, 0, 255, func(p *ThresholdProfile) *int32 { return p.AFRMSSISamples }},
	{"good_ch_rmssi_th", CtrlGoodChRMSSITh, -128, 127, func(p *ThresholdProfile) *int32 { return p.GoodChRMSSITh }},
}

// Validate reports every value that falls outside its allowed range
func (p *ThresholdProfile) Validate() error {
	var errs []error
	for _, param := range thresholdParams {
		v := param.value(p)
		if v == nil {
			continue
		}
		if *v < param.min || *v > param.max {
			errs = append(errs, fmt.Errorf("%s=%d outside [%d, %d]", param.name, *v, param.min, param.max))
		}
	}
	return errors.Join(errs...)
}

// Apply writes every set, in-range threshold to dev. Out-of-range values
// are skipped; device failures are collected and do not stop later writes.
func (p *ThresholdProfile) Apply(dev DeviceChannel) error {
	if p == nil {
		return nil
	}

	var errs []error
	applied := 0
	for _, param := range thresholdParams {
		v := param.value(p)
		if v == nil {
			continue
		}
		if *v < param.min || *v > param.max {
			logging.Warnf("hardware", "Threshold %s=%d out of range, skipped", param.name, *v)
			continue
		}
		if err := dev.SetControl(param.control, *v); err != nil {
			errs = append(errs, fmt.Errorf("threshold %s: %w", param.name, err))
			continue
		}
		applied++
	}

	logging.Debugf("hardware", "Applied %d threshold(s)", applied)
	return errors.Join(errs...)
}

// LoadThresholdProfile reads a YAML threshold profile. Out-of-range values
// are reported but kept, Apply skips them.
func LoadThresholdProfile(path string) (*ThresholdProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var profile ThresholdProfile
	if err := yaml.UnmarshalStrict(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file: %w", err)
	}
	if err := profile.Validate(); err != nil {
		logging.Warnf("hardware", "Thresholds in %s: %v", path, err)
	}
	return &profile, nil
}

// Int32 returns a pointer to v, for building profiles in code
func Int32(v int32) *int32 {
	return &v
}
