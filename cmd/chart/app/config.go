package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roman-kulish/anemometer/internal/units"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultWidth  = 1200
	defaultHeight = 600
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     string // empty selects the latest session
	OutputFile    string
	Format        ImageFormat
	Unit          units.SpeedUnit
	Theme         ColorTheme
	TimeZone      *time.Location
	Width         int
	Height        int
	ValidOnly     bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Unit:     units.MetresPerSecond,
		Theme:    BeaufortTheme,
		TimeZone: time.Local,
		Width:    defaultWidth,
		Height:   defaultHeight,
	}
}

// NewConfigFromCLI parses command line arguments, without the program name.
func NewConfigFromCLI(args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet("chart", flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, unit, theme, tz string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.StringVar(&c.SessionID, "s", "", "Session ID, the latest session when omitted")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&unit, "unit", string(units.MetresPerSecond), "Speed unit. [m/s, km/h, mph, kn, bft]")
	fs.StringVar(&theme, "theme", string(BeaufortTheme), "Color theme. [beaufort, classic, grayscale, thermal, marine]")
	fs.StringVar(&tz, "tz", "Local", "Time zone of the time scale, e.g. Europe/London")
	fs.IntVar(&c.Width, "width", defaultWidth, "Width of the plot area in pixels")
	fs.IntVar(&c.Height, "height", defaultHeight, "Height of the plot area in pixels")
	fs.BoolVar(&c.ValidOnly, "valid-only", false, "Plot only points that passed validation")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and speed scales")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	if imageFormat == "jpg" {
		imageFormat = string(ImageJPEG)
	}

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok := colorThemes[ColorTheme(strings.ToLower(theme))]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.Width < minPlotSize || c.Height < minPlotSize {
		err = fmt.Errorf("plot area must be at least %dx%d pixels", minPlotSize, minPlotSize)
	}
	if err == nil {
		c.Unit, err = units.ParseSpeedUnit(unit)
	}
	if err == nil {
		c.TimeZone, err = time.LoadLocation(tz)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Theme = ColorTheme(strings.ToLower(theme))
	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
