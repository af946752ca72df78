package reader

// QueryState is the lifecycle of a single read.
type QueryState string

const (
	// QueryDisabled: the read's inputs are not available (no wallet).
	QueryDisabled QueryState = "disabled"
	// QueryLoading: the read has not resolved yet.
	QueryLoading QueryState = "loading"
	QueryReady   QueryState = "ready"
	QueryFailed  QueryState = "failed"
)

// Query is the outcome of one read. Data is only meaningful when State is
// QueryReady.
type Query[T any] struct {
	State QueryState
	Data  T
	Err   error
}

func Ready[T any](data T) Query[T]    { return Query[T]{State: QueryReady, Data: data} }
func Failed[T any](err error) Query[T] { return Query[T]{State: QueryFailed, Err: err} }
func Loading[T any]() Query[T]        { return Query[T]{State: QueryLoading} }
func Disabled[T any]() Query[T]       { return Query[T]{State: QueryDisabled} }

// Ok reports whether the query resolved successfully.
func (q Query[T]) Ok() bool { return q.State == QueryReady }

// ErrString is the error text, or "" when there is none.
func (q Query[T]) ErrString() string {
	if q.Err == nil {
		return ""
	}
	return q.Err.Error()
}
