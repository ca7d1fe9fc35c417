package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/fishnet"
	"github.com/sells-group/spatial-features/internal/geoio"
	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/spatial"
)

type nnRequest struct {
	CRS        string       `json:"crs"`
	Targets    [][2]float64 `json:"targets"`
	References [][2]float64 `json:"references"`
	K          []int        `json:"k"`
	Backend    string       `json:"backend,omitempty"`
	KPolicy    string       `json:"k_policy,omitempty"`
}

type nnResponse struct {
	Columns []model.FeatureColumn `json:"columns"`
}

type bufferRequest struct {
	CRS        string       `json:"crs"`
	Targets    [][2]float64 `json:"targets"`
	References [][2]float64 `json:"references"`
	Radius     float64      `json:"radius"`
	Backend    string       `json:"backend,omitempty"`
}

type bufferResponse struct {
	Counts []int `json:"counts"`
}

type fishnetRequest struct {
	CRS      string            `json:"crs"`
	Region   *geojson.Geometry `json:"region"`
	CellSize float64           `json:"cell_size"`
	Points   [][2]float64      `json:"points,omitempty"`
}

// nearestNeighbor handles POST /v1/features/nn.
func (s *Server) nearestNeighbor(w http.ResponseWriter, r *http.Request) {
	var req nnRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.checkPoints(len(req.Targets) + len(req.References)); err != nil {
		s.handleError(w, err)
		return
	}
	opts, err := s.featureOptions(req.Backend, req.KPolicy)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	targets := toPointSet(req.CRS, req.Targets)
	refs := toPointSet(req.CRS, req.References)
	if len(req.K) == 0 {
		req.K = []int{1}
	}

	vals, err := feature.NearestNeighborSweep(targets, refs, req.K, opts...)
	if err != nil {
		s.handleError(w, err)
		return
	}
	pointsProcessed.WithLabelValues("nn").Add(float64(targets.Len() + refs.Len()))

	resp := nnResponse{Columns: make([]model.FeatureColumn, len(req.K))}
	for i, k := range req.K {
		resp.Columns[i] = model.FeatureColumn{Name: "nn" + strconv.Itoa(k), Values: vals[i]}
	}
	writeJSON(w, http.StatusOK, resp)
}

// buffer handles POST /v1/features/buffer.
func (s *Server) buffer(w http.ResponseWriter, r *http.Request) {
	var req bufferRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.checkPoints(len(req.Targets) + len(req.References)); err != nil {
		s.handleError(w, err)
		return
	}
	opts, err := s.featureOptions(req.Backend, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	targets := toPointSet(req.CRS, req.Targets)
	refs := toPointSet(req.CRS, req.References)
	counts, err := feature.BufferCount(targets, refs, req.Radius, opts...)
	if err != nil {
		s.handleError(w, err)
		return
	}
	pointsProcessed.WithLabelValues("buffer").Add(float64(targets.Len() + refs.Len()))

	writeJSON(w, http.StatusOK, bufferResponse{Counts: counts})
}

// fishnet handles POST /v1/fishnet. The response is a GeoJSON
// FeatureCollection of cells, with a count property when points are given.
func (s *Server) fishnet(w http.ResponseWriter, r *http.Request) {
	var req fishnetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Region == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "region is required")
		return
	}
	region := req.Region.Geometry()
	switch region.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "region must be a Polygon or MultiPolygon")
		return
	}
	if err := s.checkPoints(len(req.Points)); err != nil {
		s.handleError(w, err)
		return
	}

	net, err := fishnet.Build(region, req.CellSize,
		fishnet.WithCRS(req.CRS),
		fishnet.WithMaxCells(s.opts.MaxCells),
	)
	if err != nil {
		s.handleError(w, err)
		return
	}

	var cols []model.FeatureColumn
	if len(req.Points) > 0 {
		counts, err := fishnet.Aggregate(net, toPointSet(req.CRS, req.Points))
		if err != nil {
			s.handleError(w, err)
			return
		}
		cols = append(cols, feature.Counts("count", counts))
		pointsProcessed.WithLabelValues("fishnet").Add(float64(len(req.Points)))
	}

	var buf bytes.Buffer
	if err := geoio.WriteFishnetGeoJSON(&buf, net, cols); err != nil {
		s.handleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn("write fishnet response", zap.Error(err))
	}
}

// decode reads a size-limited JSON body into v, writing a 400 or 413 on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) checkPoints(n int) error {
	if s.opts.MaxPoints > 0 && n > s.opts.MaxPoints {
		return eris.Wrapf(errTooManyPoints, "api: %d points exceeds limit of %d", n, s.opts.MaxPoints)
	}
	return nil
}

// featureOptions layers per-request overrides on the server defaults.
func (s *Server) featureOptions(backend, policy string) ([]feature.Option, error) {
	opts := append([]feature.Option(nil), s.opts.FeatureOptions...)
	if backend != "" {
		b, err := spatial.ParseBackend(backend)
		if err != nil {
			return nil, err
		}
		opts = append(opts, feature.WithBackend(b))
	}
	if policy != "" {
		p, err := feature.ParseKPolicy(policy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, feature.WithKPolicy(p))
	}
	return opts, nil
}

func toPointSet(crs string, coords [][2]float64) model.PointSet {
	pts := make([]model.Point, len(coords))
	for i, c := range coords {
		pts[i] = model.Point{X: c[0], Y: c[1]}
	}
	return model.PointSet{CRS: crs, Points: pts}
}
