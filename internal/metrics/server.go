// Copyright (C) 2019  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

func init() {
	viper.SetDefault("metrics.address", "")
	viper.SetDefault("metrics.path", "/metrics")
}

// Options configures the metrics endpoint.
type Options struct {
	// Address to listen on. The endpoint is disabled when empty.
	Address string
	Path    string
}

// OptionsFromViper returns options read from viper.
//
// `metrics.address` is the listen address of the http endpoint.
// `metrics.path` is the path metrics are served at.
func OptionsFromViper() Options {
	return Options{
		Address: viper.GetString("metrics.address"),
		Path:    viper.GetString("metrics.path"),
	}
}

// Enabled reports whether the endpoint should be served.
func (o Options) Enabled() bool {
	return o.Address != ""
}

// NewServer creates an http server exposing the default prometheus registry.
func NewServer(opts Options) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(opts.Path, promhttp.Handler())

	return &http.Server{
		Addr:              opts.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
