package domain

// Attribute is a single named metadata value attached to a dataset or variable.
// Values are string, float64 or int.
type Attribute struct {
	Key   string
	Value any
}

// Attributes is an ordered attribute list. Order is preserved when written.
type Attributes []Attribute

// Get returns the value stored under key.
func (a Attributes) Get(key string) (any, bool) {
	for _, at := range a {
		if at.Key == key {
			return at.Value, true
		}
	}
	return nil, false
}

// String returns the value under key when it is a string.
func (a Attributes) String(key string) string {
	v, ok := a.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set replaces the value under key, appending it when absent.
func (a *Attributes) Set(key string, v any) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = v
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: v})
}
