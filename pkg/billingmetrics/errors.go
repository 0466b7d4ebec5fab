package billingmetrics

import "errors"

var ErrRefreshFailed = errors.New("billing metrics refresh failed")
