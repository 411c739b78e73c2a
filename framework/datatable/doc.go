// Package datatable loads spreadsheet-backed game data over HTTP.
//
// A sheet endpoint returns a JSON array; the loader wraps it as
// {"items": [...]} before decoding, so table types look like:
//
//	type Units struct {
//	    Items []Unit `json:"items"`
//	}
//
//	m := datatable.New(datatable.Options{URL: cfg.DataTableURL, LoadOnStart: true})
//	datatable.Register[Units](m, "Units")
//	units, err := datatable.Cached[Units](ctx, m, "Units")
package datatable
