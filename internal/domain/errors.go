package domain

// Error kinds surfaced to callers. Each carries the detail used in the
// user-facing message; infrastructure errors are never one of these.

type ErrValidation string

func (e ErrValidation) Error() string { return string(e) }

type ErrNotFound string

func (e ErrNotFound) Error() string { return string(e) + " not found" }

type ErrForbidden string

func (e ErrForbidden) Error() string { return string(e) }

type ErrInvalidState string

func (e ErrInvalidState) Error() string { return string(e) }

type ErrInvalidStatus string

func (e ErrInvalidStatus) Error() string { return "invalid status: " + string(e) }

type ErrDuplicateOrder string

func (e ErrDuplicateOrder) Error() string { return "you have already ordered this product" }

type ErrInvalidCoupon string

func (e ErrInvalidCoupon) Error() string { return "invalid or inactive coupon code" }

type ErrCouponExpired string

func (e ErrCouponExpired) Error() string { return "coupon has expired" }

type ErrUsageLimitReached string

func (e ErrUsageLimitReached) Error() string { return "coupon usage limit reached" }

type ErrAlreadyUsed string

func (e ErrAlreadyUsed) Error() string { return "you have already used this coupon" }

// ErrBelowMinimum holds the coupon's minimum order value.
type ErrBelowMinimum string

func (e ErrBelowMinimum) Error() string { return "minimum order value is " + string(e) }
