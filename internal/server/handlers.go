package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpsim/retirement-simulator/internal/calculation"
	"github.com/rpsim/retirement-simulator/internal/config"
	"github.com/rpsim/retirement-simulator/internal/domain"
	"github.com/rpsim/retirement-simulator/internal/historical"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleHistoricalReturns serves yearly rows filtered by year range and asset
// subset.
func (s *Server) handleHistoricalReturns(w http.ResponseWriter, r *http.Request) {
	filter := historical.ReturnsFilter{}

	q := r.URL.Query()
	if v := q.Get("start_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start_year")
			return
		}
		filter.StartYear = year
	}
	if v := q.Get("end_year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid end_year")
			return
		}
		filter.EndYear = year
	}
	if v := q.Get("assets"); v != "" {
		for _, name := range strings.Split(v, ",") {
			filter.Assets = append(filter.Assets, domain.AssetClass(strings.TrimSpace(name)))
		}
	}

	result, err := s.provider.Returns(filter)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistoricalRange(w http.ResponseWriter, r *http.Request) {
	result, err := s.provider.YearRange()
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistoricalSummary(w http.ResponseWriter, r *http.Request) {
	result, err := s.provider.Summarize()
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleSimulate runs a full Monte Carlo experiment from a JSON request body
// and responds with the aggregate statistics.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var fc config.FileConfig
	if err := json.NewDecoder(r.Body).Decode(&fc); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if fc.Run.HistoricalData == "" {
		fc.Run.HistoricalData = s.dataPath
	}

	parser := config.NewInputParser()
	runCfg, err := parser.Resolve(&fc)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	modelCfg := calculation.ModelConfig{
		Kind:             runCfg.Model,
		Horizon:          runCfg.Parameters.HorizonYears,
		DegreesOfFreedom: runCfg.DegreesOfFreedom,
	}
	if runCfg.Model == calculation.ModelBootstrap {
		snapshot, err := s.provider.Snapshot()
		if err != nil {
			s.writeProviderError(w, err)
			return
		}
		modelCfg.Historical = snapshot
	}

	factory, err := calculation.NewFactory(modelCfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sim, err := calculation.NewMonteCarloSimulator(factory, &runCfg.Parameters, calculation.MonteCarloConfig{
		Trials:  runCfg.Trials,
		Seed:    runCfg.Seed,
		Workers: runCfg.Workers,
	}, s.log)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := sim.Run()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, historical.ErrNotLoaded):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, historical.ErrNoDataInRange):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
