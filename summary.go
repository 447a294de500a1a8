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

package tminzonal

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tminzonal/artifact"
	"github.com/spatialmodel/tminzonal/cloud"
)

// Summary reads the combined table at tablePath, or the table of the
// run described by cfg if tablePath is empty, writes any ranking files
// that are missing from cfg.OutputDir and returns the table KPIs.
// Tables may be CSV files or workbooks (.xlsx).
func Summary(ctx context.Context, cfg *Config, tablePath string, log logrus.FieldLogger) (artifact.KPIs, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s, err := cloud.NewStager(cfg.OutputDir)
	if err != nil {
		return artifact.KPIs{}, err
	}
	defer s.Close()
	if tablePath == "" {
		tablePath = s.Destination(cfg.TableFile)
	}
	tmp, err := ioutil.TempDir("", "tminzonal")
	if err != nil {
		return artifact.KPIs{}, fmt.Errorf("tminzonal: %v", err)
	}
	defer os.RemoveAll(tmp)
	local, err := cloud.Fetch(ctx, tablePath, tmp)
	if err != nil {
		return artifact.KPIs{}, err
	}
	t, err := readTable(local)
	if err != nil {
		return artifact.KPIs{}, err
	}

	for _, r := range []struct {
		name       string
		descending bool
	}{
		{cfg.TopFile, true},
		{cfg.BottomFile, false},
	} {
		ok, err := cloud.Exists(ctx, s.Destination(r.name))
		if err != nil {
			return artifact.KPIs{}, fmt.Errorf("tminzonal: checking %s: %v", r.name, err)
		}
		if ok {
			continue
		}
		ranked := artifact.Rank(t, cfg.TopN, r.descending)
		if err := writeFile(s.Path(r.name), func(w io.Writer) error { return artifact.WriteRankingCSV(w, ranked) }); err != nil {
			return artifact.KPIs{}, fmt.Errorf("tminzonal: writing %s: %v", r.name, err)
		}
		log.WithField("path", s.Destination(r.name)).Info("tminzonal: regenerated ranking")
	}
	if err := s.Commit(ctx); err != nil {
		return artifact.KPIs{}, err
	}
	return artifact.Summarize(t), nil
}

func readTable(path string) (artifact.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return artifact.ReadXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tminzonal: %v", err)
	}
	defer f.Close()
	return artifact.ReadCSV(f)
}
