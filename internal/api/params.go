package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/erazemk/duka/internal/model"
	"github.com/erazemk/duka/internal/store"
)

// maxPageSize bounds the limit query parameter.
const maxPageSize = 500

// pathID parses the {id} path value. It writes a 400 and returns false when
// the value is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}

func queryInt64(q url.Values, key string) (int64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func queryPage(q url.Values) (store.Page, error) {
	limit, err := queryInt64(q, "limit")
	if err != nil {
		return store.Page{}, err
	}
	offset, err := queryInt64(q, "offset")
	if err != nil {
		return store.Page{}, err
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return store.Page{Limit: int(limit), Offset: int(offset)}, nil
}

// queryDates parses from and to as YYYY-MM-DD. Both ends are inclusive.
func queryDates(q url.Values) (store.DateRange, error) {
	var dr store.DateRange
	for key, dst := range map[string]*model.Date{"from": &dr.From, "to": &dr.To} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		d, err := model.ParseDate(v)
		if err != nil {
			return dr, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}
	if !dr.From.IsZero() && !dr.To.IsZero() && dr.To.Before(dr.From.Time) {
		return dr, fmt.Errorf("%w: to is before from", model.ErrValidation)
	}
	return dr, nil
}

func queryLocation(q url.Values) (model.Location, error) {
	loc := model.Location(q.Get("location"))
	if loc != model.LocationNone && !loc.Valid() {
		return "", fmt.Errorf("invalid location %q", loc)
	}
	return loc, nil
}

// queryError reports an unusable query parameter. Ranges that parse but
// make no sense are validation failures, anything else is a bad request.
func queryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, model.ErrValidation) {
		writeError(w, r, err)
		return
	}
	jsonError(w, http.StatusBadRequest, err.Error())
}
