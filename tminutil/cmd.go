/*
Copyright © 2026 the tminzonal authors.
This file is part of tminzonal.

tminzonal is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

tminzonal is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with tminzonal.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package tminutil contains the command-line interface of tminzonal.
package tminutil

import (
	"context"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tminzonal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
type Cfg struct {
	*viper.Viper

	// Root is the main command.
	Root *cobra.Command

	// Log receives progress messages and warnings.
	Log *logrus.Logger

	runCmd, inspectCmd, prepareCmd, summaryCmd, configCmd, versionCmd *cobra.Command
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates the commands and sets up their configuration
// options.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper: viper.New(),
		Log:   logrus.New(),
	}
	cfg.Log.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	cfg.Root = &cobra.Command{
		Use:   "tminzonal",
		Short: "District statistics of minimum temperature.",
		Long: `tminzonal calculates statistics of a minimum temperature (Tmin) raster
within each district of a boundary file, scores the frost risk of each
district, and writes the results as tables, a choropleth map and a histogram.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'TMINZONAL_var' where 'var' is the
name of the variable to be set.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return cfg.setConfig() },
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of tminzonal.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tminzonal v%s\n", tminzonal.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.runCmd = &cobra.Command{
		Use:   "run",
		Short: "Calculate district statistics.",
		Long: `run reads the Tmin raster and the district boundaries, calculates
the statistics and risk scores of each district and writes the output files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg.Config()
			if err != nil {
				return err
			}
			res, err := tminzonal.Run(context.Background(), c, cfg.Log)
			if err != nil {
				return err
			}
			for _, o := range res.Outputs {
				fmt.Fprintln(cmd.OutOrStdout(), o)
			}
			return nil
		},
		DisableAutoGenTag: true,
	}

	cfg.inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Describe the Tmin raster.",
		Long: `inspect prints the size, spatial reference, transform and value range
of the Tmin raster, and whether its values appear to be stored as tenths
of a degree.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg.Config()
			if err != nil {
				return err
			}
			s, err := tminzonal.Inspect(context.Background(), c)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), s.String())
			if s.LikelyScaled() {
				fmt.Fprintln(cmd.OutOrStdout(), "note: values suggest a scale of 10 (e.g., -30 °C stored as -300); set ScaleFactor = 10")
			}
			return nil
		},
		DisableAutoGenTag: true,
	}

	cfg.prepareCmd = &cobra.Command{
		Use:   "prepare",
		Short: "Clean the district boundaries.",
		Long: `prepare loads the district boundaries, normalizes their identifiers,
repairs invalid geometries and writes them to CleanFile with canonical
identifier columns.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg.Config()
			if err != nil {
				return err
			}
			_, err = tminzonal.Prepare(context.Background(), c, cfg.GetString("CleanFile"), cfg.Log)
			return err
		},
		DisableAutoGenTag: true,
	}

	cfg.summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Print the headline figures of a completed run.",
		Long: `summary reads the combined table of a completed run, prints the number
of districts, the mean Tmin, the mean 10th percentile and the number of
districts below freezing, and writes any missing ranking files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg.Config()
			if err != nil {
				return err
			}
			k, err := tminzonal.Summary(context.Background(), c, cfg.GetString("table"), cfg.Log)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), k.String())
			return nil
		},
		DisableAutoGenTag: true,
	}

	cfg.configCmd = &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration.",
		Long: `config prints the configuration that results from the defaults, the
configuration file, environment variables and command-line arguments, in
the configuration file format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cfg.Config()
			if err != nil {
				return err
			}
			return WriteConfig(cmd.OutOrStdout(), c)
		},
		DisableAutoGenTag: true,
	}

	// Link the commands together.
	cfg.Root.AddCommand(cfg.versionCmd, cfg.runCmd, cfg.inspectCmd, cfg.prepareCmd, cfg.summaryCmd, cfg.configCmd)

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("TMINZONAL")
	cfg.AutomaticEnv()

	for _, option := range cfg.options() {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic(fmt.Errorf("tminutil: invalid default type %T for option %s", v, option.name))
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	return cfg
}

// options are the configuration options available to tminzonal.
func (cfg *Cfg) options() []option {
	def := tminzonal.DefaultConfig()
	root := cfg.Root.PersistentFlags()
	run := cfg.runCmd.Flags()
	inspect := cfg.inspectCmd.Flags()
	prepare := cfg.prepareCmd.Flags()
	summary := cfg.summaryCmd.Flags()
	config := cfg.configCmd.Flags()
	return []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{root},
		},
		{
			name: "log_level",
			usage: `
              log_level is the least severe level of messages to print:
              one of debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{root},
		},
		{
			name: "RasterPath",
			usage: `
              RasterPath is the path to the Tmin raster (GeoTIFF or netCDF).
              It may be a blob URL (file://, gs:// or s3://). If empty, the
              first raster in RasterDir is used.`,
			defaultVal: def.RasterPath,
			flagsets:   []*pflag.FlagSet{run, inspect, config},
		},
		{
			name: "RasterDir",
			usage: `
              RasterDir is searched for a .tif, .tiff or .nc file when
              RasterPath is empty.`,
			defaultVal: def.RasterDir,
			flagsets:   []*pflag.FlagSet{run, inspect, config},
		},
		{
			name: "NetCDFVariable",
			usage: `
              NetCDFVariable is the variable to read from netCDF rasters.
              If empty, the first gridded variable is used.`,
			defaultVal: def.NetCDFVariable,
			flagsets:   []*pflag.FlagSet{run, inspect, config},
		},
		{
			name: "VectorPath",
			usage: `
              VectorPath is the path to the district boundaries (.zip, .shp,
              .geojson or .json). It may be a blob URL. If empty, the first
              boundary file in VectorDir is used.`,
			defaultVal: def.VectorPath,
			flagsets:   []*pflag.FlagSet{run, prepare, config},
		},
		{
			name: "VectorDir",
			usage: `
              VectorDir is searched for a boundary file when VectorPath is empty.`,
			defaultVal: def.VectorDir,
			flagsets:   []*pflag.FlagSet{run, prepare, config},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory, or blob URL, the output files are
              written to.`,
			defaultVal: def.OutputDir,
			flagsets:   []*pflag.FlagSet{run, summary, config},
		},
		{
			name: "ScaleFactor",
			usage: `
              ScaleFactor divides every statistic except the cell count.
              Use 10 for rasters stored as tenths of a degree. inspect
              applies it to the raster values it reports.`,
			defaultVal: def.ScaleFactor,
			flagsets:   []*pflag.FlagSet{run, inspect, config},
		},
		{
			name: "TargetCRS",
			usage: `
              TargetCRS is the spatial reference, as an EPSG code or proj4
              string, the boundaries are harmonized to and the map is drawn in.`,
			defaultVal: def.TargetCRS,
			flagsets:   []*pflag.FlagSet{run, prepare, config},
		},
		{
			name: "Normalize",
			usage: `
              Normalize upper-cases the district identifiers and removes
              their accents.`,
			defaultVal: def.Normalize,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "TopN",
			usage: `
              TopN is the number of districts in each ranking file.`,
			defaultVal: def.TopN,
			flagsets:   []*pflag.FlagSet{run, summary, config},
		},
		{
			name: "TableFile",
			usage: `
              TableFile is the name of the combined statistics table.`,
			defaultVal: def.TableFile,
			flagsets:   []*pflag.FlagSet{run, summary, config},
		},
		{
			name: "MapFile",
			usage: `
              MapFile is the name of the choropleth map image.`,
			defaultVal: def.MapFile,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "HistogramFile",
			usage: `
              HistogramFile is the name of the histogram image.`,
			defaultVal: def.HistogramFile,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "TopFile",
			usage: `
              TopFile is the name of the ranking of the warmest districts.`,
			defaultVal: def.TopFile,
			flagsets:   []*pflag.FlagSet{run, summary, config},
		},
		{
			name: "BottomFile",
			usage: `
              BottomFile is the name of the ranking of the coldest districts.`,
			defaultVal: def.BottomFile,
			flagsets:   []*pflag.FlagSet{run, summary, config},
		},
		{
			name: "XLSXFile",
			usage: `
              XLSXFile is the name of an optional workbook holding the
              combined table and both rankings. If empty, no workbook is written.`,
			defaultVal: def.XLSXFile,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "MapWidth",
			usage: `
              MapWidth is the width of the map in inches.`,
			defaultVal: def.MapWidth,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "MapHeight",
			usage: `
              MapHeight is the height of the map in inches.`,
			defaultVal: def.MapHeight,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "MapDPI",
			usage: `
              MapDPI is the resolution of the map in dots per inch.`,
			defaultVal: def.MapDPI,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "HistBins",
			usage: `
              HistBins is the number of histogram bins.`,
			defaultVal: def.HistBins,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "HistDPI",
			usage: `
              HistDPI is the resolution of the histogram in dots per inch.`,
			defaultVal: def.HistDPI,
			flagsets:   []*pflag.FlagSet{run, config},
		},
		{
			name: "CleanFile",
			usage: `
              CleanFile is where prepare writes the cleaned boundaries: a
              .geojson, .json or .shp file, or a blob URL.`,
			defaultVal: tminzonal.DefaultCleanFile,
			flagsets:   []*pflag.FlagSet{prepare},
		},
		{
			name: "table",
			usage: `
              table is the combined table (.csv or .xlsx) to summarize. If
              empty, TableFile in OutputDir is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{summary},
		},
	}
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func (cfg *Cfg) setConfig() error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("tminzonal: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(cfg.GetString("log_level"))
	if err != nil {
		return fmt.Errorf("tminzonal: %v", err)
	}
	cfg.Log.SetLevel(level)
	return nil
}
