package httpclient

import "net/http"

// RequestOption is a functional option for a single Client.Request call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	json    any
	hasJSON bool
	form    []FormPart
	files   []*File
	reason  string
	locale  string
	headers http.Header
}

// WithJSON sends payload serialized as JSON with Content-Type application/json.
func WithJSON(payload any) RequestOption {
	return func(o *requestOptions) {
		o.json = payload
		o.hasJSON = true
	}
}

// WithForm sends the parts as a multipart/form-data body. The form is
// re-encoded for every attempt.
func WithForm(parts ...FormPart) RequestOption {
	return func(o *requestOptions) {
		o.form = append(o.form, parts...)
	}
}

// WithFiles registers the files referenced by the form parts so they are
// rewound to their original offset before a retried attempt.
func WithFiles(files ...*File) RequestOption {
	return func(o *requestOptions) {
		o.files = append(o.files, files...)
	}
}

// WithReason sets the X-Audit-Log-Reason header.
func WithReason(reason string) RequestOption {
	return func(o *requestOptions) {
		o.reason = reason
	}
}

// WithLocale sets the X-Discord-Locale header.
func WithLocale(locale string) RequestOption {
	return func(o *requestOptions) {
		o.locale = locale
	}
}

// WithHeader sets an additional header on every attempt.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Set(key, value)
	}
}

func applyOptions(opts []RequestOption) *requestOptions {
	o := &requestOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
