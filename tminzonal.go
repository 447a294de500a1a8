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

// Package tminzonal calculates per-district statistics of a minimum
// temperature (Tmin) raster and writes them as tables, a choropleth map
// and a histogram.
package tminzonal

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tminzonal/artifact"
	"github.com/spatialmodel/tminzonal/boundary"
	"github.com/spatialmodel/tminzonal/cloud"
	"github.com/spatialmodel/tminzonal/internal/crs"
	"github.com/spatialmodel/tminzonal/internal/hash"
	"github.com/spatialmodel/tminzonal/raster"
	"github.com/spatialmodel/tminzonal/zonal"
	"gonum.org/v1/plot/vg"
)

// Version is the version of this software.
const Version = "0.3.0"

// Result describes a completed run.
type Result struct {
	// Table has one row per district, in boundary file order.
	Table artifact.Table

	// Raster summarizes the input raster before rescaling.
	Raster raster.Summary

	// Outputs lists the written files in the order they were written.
	Outputs []string

	// Fingerprint is a hash of the combined table file. It is the same
	// for every run with the same inputs and settings.
	Fingerprint string

	// Settings is a hash of the configuration of the run.
	Settings string
}

// Run calculates the zonal statistics and risk scores of every district
// and writes the output files.
func Run(ctx context.Context, cfg *Config, log logrus.FieldLogger) (*Result, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tmp, err := ioutil.TempDir("", "tminzonal")
	if err != nil {
		return nil, fmt.Errorf("tminzonal: %v", err)
	}
	defer os.RemoveAll(tmp)

	rasterPath, err := resolveInput(ctx, cfg.RasterPath, cfg.RasterDir, RasterExtensions, tmp)
	if err != nil {
		return nil, fmt.Errorf("tminzonal: locating raster: %w", err)
	}
	vectorPath, err := resolveInput(ctx, cfg.VectorPath, cfg.VectorDir, VectorExtensions, tmp)
	if err != nil {
		return nil, fmt.Errorf("tminzonal: locating boundaries: %w", err)
	}
	log.WithFields(logrus.Fields{"raster": rasterPath, "boundaries": vectorPath}).Info("tminzonal: inputs")

	target, err := crs.Parse(cfg.TargetCRS)
	if err != nil {
		return nil, fmt.Errorf("tminzonal: %v", err)
	}
	d, err := boundary.Load(vectorPath, boundary.Options{
		TargetSR:  target,
		Normalize: cfg.Normalize,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	g, err := readRaster(rasterPath, cfg.NetCDFVariable)
	if err != nil {
		return nil, err
	}
	summary := raster.Inspect(g)
	log.WithFields(logrus.Fields{
		"width":  summary.Width,
		"height": summary.Height,
		"epsg":   summary.EPSG,
		"valid":  summary.Valid,
		"min":    summary.Min,
		"max":    summary.Max,
	}).Info("tminzonal: raster")
	if summary.LikelyScaled() {
		log.Warnf("tminzonal: raster values exceed ±%g; they may be stored as tenths of a degree (consider ScaleFactor = 10)", raster.PlausibleLimit)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	polys := d.Polygons()
	if g.SR == nil {
		log.Warn("tminzonal: raster has no known spatial reference; assuming it matches the boundaries")
	} else if !crs.Equal(d.SR, g.SR) {
		if polys, err = transformPolygons(polys, d.SR, g.SR); err != nil {
			return nil, err
		}
	}
	stats := zonal.Aggregate(polys, g, zonal.Options{Log: log})
	if cfg.ScaleFactor != 1 {
		for i := range stats {
			stats[i] = zonal.Rescale(stats[i], cfg.ScaleFactor)
		}
	}
	table, err := artifact.NewTable(d.Records, stats, zonal.ScoreAll(stats))
	if err != nil {
		return nil, fmt.Errorf("tminzonal: %v", err)
	}

	res := &Result{Table: table, Raster: summary, Settings: hash.Hash(cfg)}
	if err := writeOutputs(ctx, cfg, d, res, log); err != nil {
		return nil, err
	}
	k := artifact.Summarize(table)
	log.WithFields(logrus.Fields{
		"districts":   k.Districts,
		"mean_tmin":   k.MeanTmin,
		"mean_p10":    k.MeanP10,
		"freezing":    k.Freezing,
		"fingerprint": res.Fingerprint,
		"settings":    res.Settings,
	}).Info("tminzonal: finished")
	return res, nil
}

// resolveInput returns a local copy of path, or of the first matching
// file in dir when path is empty.
func resolveInput(ctx context.Context, path, dir string, exts []string, tmp string) (string, error) {
	var err error
	if path == "" {
		if path, err = findInput(ctx, dir, exts...); err != nil {
			return "", err
		}
	}
	return cloud.Fetch(ctx, path, tmp)
}

// readRaster reads the first band of the raster at path. The file is
// closed before returning.
func readRaster(path, variable string) (*raster.Grid, error) {
	src, err := raster.Open(path, variable)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return raster.ReadGrid(src)
}

// transformPolygons returns copies of polys reprojected from one
// spatial reference to another.
func transformPolygons(polys []geom.Polygonal, from, to *proj.SR) ([]geom.Polygonal, error) {
	ct, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("tminzonal: creating transform to the raster reference: %v", err)
	}
	o := make([]geom.Polygonal, len(polys))
	for i, p := range polys {
		t, err := p.Transform(ct)
		if err != nil {
			return nil, fmt.Errorf("tminzonal: reprojecting district %d: %v", i, err)
		}
		var ok bool
		if o[i], ok = t.(geom.Polygonal); !ok {
			return nil, fmt.Errorf("tminzonal: reprojected district %d is a %T", i, t)
		}
	}
	return o, nil
}

// writeOutputs writes the output files and uploads them if OutputDir is
// a blob URL. A failed write stops the remaining writes.
func writeOutputs(ctx context.Context, cfg *Config, d *boundary.Dataset, res *Result, log logrus.FieldLogger) error {
	s, err := cloud.NewStager(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer s.Close()

	t := res.Table
	local := make(map[string]string)
	write := func(name string, f func(io.Writer) error) error {
		local[name] = s.Path(name)
		if err := writeFile(local[name], f); err != nil {
			return fmt.Errorf("tminzonal: writing %s: %v", name, err)
		}
		res.Outputs = append(res.Outputs, s.Destination(name))
		log.WithField("path", s.Destination(name)).Info("tminzonal: wrote output")
		return nil
	}

	if err := write(cfg.TableFile, func(w io.Writer) error { return artifact.WriteCSV(w, t) }); err != nil {
		return err
	}
	if res.Fingerprint, err = hash.File(local[cfg.TableFile]); err != nil {
		return fmt.Errorf("tminzonal: %v", err)
	}

	mapOpts := artifact.DefaultMapOptions()
	mapOpts.Width = vg.Length(cfg.MapWidth) * vg.Inch
	mapOpts.Height = vg.Length(cfg.MapHeight) * vg.Inch
	mapOpts.DPI = cfg.MapDPI
	if err := write(cfg.MapFile, func(w io.Writer) error {
		return artifact.Choropleth(w, d.Polygons(), t.Means(), mapOpts)
	}); err != nil {
		return err
	}

	histOpts := artifact.DefaultHistOptions()
	histOpts.Bins = cfg.HistBins
	histOpts.DPI = cfg.HistDPI
	if artifact.Summarize(t).MeanTmin.Valid {
		if err := write(cfg.HistogramFile, func(w io.Writer) error {
			return artifact.Histogram(w, t.Means(), histOpts)
		}); err != nil {
			return err
		}
	} else {
		log.Warn("tminzonal: no district has a mean value; skipping the histogram")
	}

	top := artifact.Rank(t, cfg.TopN, true)
	bottom := artifact.Rank(t, cfg.TopN, false)
	if err := write(cfg.TopFile, func(w io.Writer) error { return artifact.WriteRankingCSV(w, top) }); err != nil {
		return err
	}
	if err := write(cfg.BottomFile, func(w io.Writer) error { return artifact.WriteRankingCSV(w, bottom) }); err != nil {
		return err
	}

	if cfg.XLSXFile != "" {
		if err := write(cfg.XLSXFile, func(w io.Writer) error {
			return artifact.WriteXLSX(w,
				artifact.Sheet{Name: "distritos", Header: artifact.Header, Table: t},
				artifact.Sheet{Name: "mas_calidos", Header: artifact.RankingHeader, Table: top},
				artifact.Sheet{Name: "mas_frios", Header: artifact.RankingHeader, Table: bottom},
			)
		}); err != nil {
			return err
		}
	}
	return s.Commit(ctx)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
