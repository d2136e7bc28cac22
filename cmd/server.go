package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tidbyt.dev/timetable"
	"tidbyt.dev/timetable/logging"
	"tidbyt.dev/timetable/metrics"
	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/state"
)

// Requester asks for a realtime fetch outside the regular schedule.
type Requester interface {
	Request()
}

type server struct {
	schedule *timetable.Schedule
	store    *state.Store
	poller   Requester
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeNow  func() time.Time
}

type stopView struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Zone string  `json:"zone,omitempty"`
	City string  `json:"city,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

type cellView struct {
	Stop           string     `json:"stop"`
	Kind           string     `json:"kind"`
	Scheduled      *time.Time `json:"scheduled,omitempty"`
	Predicted      *time.Time `json:"predicted,omitempty"`
	Delay          int        `json:"delay,omitempty"`
	Realtime       bool       `json:"realtime,omitempty"`
	SinceReference int        `json:"sinceReference,omitempty"`
}

type rowView struct {
	Trip     string     `json:"trip"`
	Route    string     `json:"route"`
	Headsign string     `json:"headsign"`
	Cells    []cellView `json:"cells"`
}

type timetableView struct {
	Direction string    `json:"direction"`
	Stops     []string  `json:"stops"`
	Rows      []rowView `json:"rows"`
}

type alertView struct {
	ID          string     `json:"id"`
	Cause       string     `json:"cause"`
	Effect      string     `json:"effect"`
	Header      string     `json:"header"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	ActiveUntil *time.Time `json:"activeUntil,omitempty"`
}

type stateView struct {
	Checked     []string    `json:"checked"`
	Reference   string      `json:"reference,omitempty"`
	Date        string      `json:"date"`
	Phase       string      `json:"phase"`
	NextFetch   *time.Time  `json:"nextFetch,omitempty"`
	LastUpdated *time.Time  `json:"lastUpdated,omitempty"`
	Staleness   *float64    `json:"stalenessSeconds,omitempty"`
	LastError   string      `json:"lastError,omitempty"`
	FailedFeeds []string    `json:"failedFeeds,omitempty"`
	TripUpdates int         `json:"tripUpdates"`
	Alerts      []alertView `json:"alerts"`
}

type errorView struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

func (srv *server) routes() http.Handler {
	router := httprouter.New()
	router.GET("/stops", srv.stopsHandler)
	router.GET("/stops/nearby", srv.nearbyHandler)
	router.GET("/trips/:id/shape", srv.shapeHandler)
	router.GET("/timetables", srv.timetablesHandler)
	router.GET("/state", srv.stateHandler)
	router.POST("/selection/toggle/:stop", srv.toggleHandler)
	router.POST("/selection/reference/:stop", srv.referenceHandler)
	router.POST("/date/:date", srv.dateHandler)
	router.DELETE("/session", srv.clearHandler)
	router.POST("/realtime/refresh", srv.refreshHandler)
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(srv.metrics.Registry, promhttp.HandlerOpts{}))
	return router
}

func (srv *server) sendResponse(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.LogError(srv.logger, "failed to encode response", err)
	}
}

func (srv *server) errorResponse(w http.ResponseWriter, status int, text string) {
	srv.sendResponse(w, status, errorView{Code: status, Text: text})
}

func newStopView(stop *model.Stop) stopView {
	v := stopView{ID: string(stop.ID), Name: string(stop.Name), City: stop.City, Lat: stop.Lat, Lon: stop.Lon}
	if stop.Zone != nil {
		v.Zone = string(stop.Zone.ID)
	}
	return v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (srv *server) stopsHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	views := []stopView{}
	for _, stop := range srv.schedule.Stops() {
		views = append(views, newStopView(stop))
	}
	srv.sendResponse(w, http.StatusOK, views)
}

func (srv *server) nearbyHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	lat, err := strconv.ParseFloat(query.Get("lat"), 64)
	if err != nil {
		srv.errorResponse(w, http.StatusBadRequest, "invalid lat")
		return
	}
	lon, err := strconv.ParseFloat(query.Get("lon"), 64)
	if err != nil {
		srv.errorResponse(w, http.StatusBadRequest, "invalid lon")
		return
	}
	limit := 0
	if l := query.Get("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 0 {
			srv.errorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	views := []stopView{}
	for _, stop := range srv.schedule.NearbyStops(lat, lon, limit) {
		views = append(views, newStopView(stop))
	}
	srv.sendResponse(w, http.StatusOK, views)
}

func (srv *server) shapeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	encoded, err := srv.schedule.ShapePolyline(model.TripID(ps.ByName("id")))
	if err != nil {
		srv.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	srv.sendResponse(w, http.StatusOK, map[string]string{"polyline": encoded})
}

func (srv *server) timetablesHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st := srv.store.State()
	loc := srv.schedule.Timezone()
	when := st.Date.Resolve(srv.timeNow(), loc)

	views := []timetableView{}
	for _, tt := range srv.schedule.Timetables(st.Selection.Names(), when) {
		view := timetableView{Direction: string(tt.Direction), Stops: []string{}, Rows: []rowView{}}
		for _, name := range st.Selection.StopsToShow(tt.Canonical) {
			view.Stops = append(view.Stops, string(name))
		}

		for _, row := range srv.schedule.Rows(tt, st.Selection, when, st.TripUpdates) {
			rv := rowView{Trip: string(row.Trip.ID), Headsign: row.Trip.Headsign}
			if row.Trip.Route != nil {
				rv.Route = string(row.Trip.Route.ID)
			}
			for _, cell := range row.Cells {
				cv := cellView{Stop: string(cell.Stop.Name), Kind: cell.Kind.String()}
				if cell.Kind == timetable.CellTime {
					cv.Scheduled = timePtr(cell.Scheduled.In(loc))
					cv.Predicted = timePtr(cell.Predicted.In(loc))
					cv.Delay = cell.Delay
					cv.Realtime = cell.Realtime
					cv.SinceReference = int(cell.SinceReference / time.Minute)
				}
				rv.Cells = append(rv.Cells, cv)
			}
			view.Rows = append(view.Rows, rv)
		}
		views = append(views, view)
	}

	srv.sendResponse(w, http.StatusOK, views)
}

func (srv *server) newStateView(st state.State) stateView {
	view := stateView{
		Checked:     []string{},
		Reference:   string(st.Selection.Reference),
		Date:        st.Date.String(),
		Phase:       st.Fetch.Phase.String(),
		LastUpdated: timePtr(st.LastUpdated),
		LastError:   st.LastError,
		FailedFeeds: st.FailedFeeds,
		TripUpdates: len(st.TripUpdates),
		Alerts:      []alertView{},
	}
	for _, name := range st.Selection.Names() {
		view.Checked = append(view.Checked, string(name))
	}
	if st.Fetch.Phase == state.Scheduled {
		view.NextFetch = timePtr(st.Fetch.Next)
	}
	if age, ok := st.Staleness(srv.timeNow()); ok {
		seconds := age.Seconds()
		view.Staleness = &seconds
	}
	for _, a := range st.Alerts {
		view.Alerts = append(view.Alerts, alertView{
			ID:          a.ID,
			Cause:       a.Cause,
			Effect:      a.Effect,
			Header:      a.Header,
			Description: a.Description,
			URL:         a.URL,
			ActiveUntil: timePtr(a.ActiveUntil),
		})
	}
	return view
}

func (srv *server) stateHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	srv.sendResponse(w, http.StatusOK, srv.newStateView(srv.store.State()))
}

func (srv *server) knownStop(name model.StopName) bool {
	for _, n := range srv.schedule.StopNames() {
		if n == name {
			return true
		}
	}
	return false
}

func (srv *server) toggleHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := model.StopName(ps.ByName("stop"))
	if !srv.knownStop(name) {
		srv.errorResponse(w, http.StatusNotFound, "unknown stop")
		return
	}
	st := srv.store.Dispatch(state.ToggleStop{Stop: name})
	srv.sendResponse(w, http.StatusOK, srv.newStateView(st))
}

func (srv *server) referenceHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := model.StopName(ps.ByName("stop"))
	if !srv.knownStop(name) {
		srv.errorResponse(w, http.StatusNotFound, "unknown stop")
		return
	}
	st := srv.store.Dispatch(state.SelectReference{Stop: name})
	srv.sendResponse(w, http.StatusOK, srv.newStateView(st))
}

func (srv *server) dateHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	date, err := model.ParseShowDate(ps.ByName("date"))
	if err != nil {
		srv.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	st := srv.store.Dispatch(state.SetDate{Date: date})
	srv.sendResponse(w, http.StatusOK, srv.newStateView(st))
}

func (srv *server) clearHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st, err := srv.store.Clear()
	if err != nil {
		logging.LogError(srv.logger, "clearing session", err)
		srv.errorResponse(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	srv.sendResponse(w, http.StatusOK, srv.newStateView(st))
}

func (srv *server) refreshHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if srv.poller == nil {
		srv.errorResponse(w, http.StatusConflict, "realtime disabled")
		return
	}
	srv.poller.Request()
	srv.sendResponse(w, http.StatusAccepted, errorView{Code: http.StatusAccepted, Text: "fetch requested"})
}
