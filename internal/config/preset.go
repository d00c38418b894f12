package config

// Preset files carry site and movie-type defaults in HCL:
//
//	workers = 16
//	mem_gb  = 64
//
//	movie "log_rho" {
//	  vmin = -5
//	  vmax = 1
//	  log  = true
//	}
//
// An explicitly passed flag always beats a preset value.

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// defaultPresetName is picked up from the working directory when --config is not given.
const defaultPresetName = "grmovie.hcl"

type presetFile struct {
	Workers  *int     `hcl:"workers,optional"`
	MemGB    *float64 `hcl:"mem_gb,optional"`
	Timeout  *string  `hcl:"timeout,optional"`
	Plotter  *string  `hcl:"plotter,optional"`
	FPS      *int     `hcl:"fps,optional"`
	BasePath *string  `hcl:"base_path,optional"`
	OutPath  *string  `hcl:"out_path,optional"`

	Movies []presetMovie `hcl:"movie,block"`
}

type presetMovie struct {
	Type    string   `hcl:"type,label"`
	VMin    *float64 `hcl:"vmin,optional"`
	VMax    *float64 `hcl:"vmax,optional"`
	Log     *bool    `hcl:"log,optional"`
	Size    *float64 `hcl:"size,optional"`
	Shading *string  `hcl:"shading,optional"`
	Overlay *string  `hcl:"overlay,optional"`
}

// applyPreset loads the preset file (explicit --config, else ./grmovie.hcl when
// present) and fills settings whose flags were not passed. Movie blocks are
// stored for [Config.PlotArgs]; a repeated type label keeps the later block.
func applyPreset(cfg *Config, set map[string]bool) error {
	path := cfg.ConfigFile
	if path == "" {
		if _, err := os.Stat(defaultPresetName); err != nil {
			return nil
		}
		path = defaultPresetName
	}

	pf, err := loadPresetFile(path)
	if err != nil {
		return err
	}

	if pf.Workers != nil && !set["nthreads"] && !set["n"] {
		cfg.Workers = *pf.Workers
	}
	if pf.MemGB != nil && !set["mem"] {
		cfg.MemGB = *pf.MemGB
	}
	if pf.Timeout != nil && !set["timeout"] {
		d, err := time.ParseDuration(*pf.Timeout)
		if err != nil {
			return fmt.Errorf("preset %s: invalid timeout %q: %w", path, *pf.Timeout, err)
		}
		cfg.Timeout = d
	}
	if pf.Plotter != nil && !set["plotter"] {
		cfg.Plotter = *pf.Plotter
	}
	if pf.FPS != nil && !set["fps"] {
		cfg.FPS = *pf.FPS
	}
	if pf.BasePath != nil && !set["base-path"] {
		cfg.BasePath = NormalizeDirArg(*pf.BasePath)
	}
	if pf.OutPath != nil && !set["out-path"] {
		cfg.OutPath = NormalizeDirArg(*pf.OutPath)
	}

	if len(pf.Movies) > 0 {
		cfg.moviePresets = map[string]map[string]string{}
		for _, m := range pf.Movies {
			cfg.moviePresets[m.Type] = m.options()
		}
	}
	return nil
}

// loadPresetFile parses and decodes one HCL preset file.
func loadPresetFile(path string) (*presetFile, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse preset file %s: %s", path, diags.Error())
	}

	var pf presetFile
	diags = gohcl.DecodeBody(file.Body, nil, &pf)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode preset file %s: %s", path, diags.Error())
	}
	return &pf, nil
}

// options flattens one movie block into the string record carried by work
// units. Booleans keep "true"/"false" so the plotter arg builder can emit
// bare switches.
func (m presetMovie) options() map[string]string {
	out := map[string]string{}
	if m.VMin != nil {
		out["vmin"] = formatFloat(*m.VMin)
	}
	if m.VMax != nil {
		out["vmax"] = formatFloat(*m.VMax)
	}
	if m.Log != nil {
		out["log"] = strconv.FormatBool(*m.Log)
	}
	if m.Size != nil {
		out["size"] = formatFloat(*m.Size)
	}
	if m.Shading != nil {
		out["shading"] = *m.Shading
	}
	if m.Overlay != nil {
		out["overlay"] = *m.Overlay
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
