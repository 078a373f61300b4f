package bind

// TakesValue is a widget-side value holder.
type TakesValue[T any] interface {
	Value() T
	SetValue(v T)
}

// HasText is implemented by widgets showing plain text.
type HasText interface {
	Text() string
	SetText(s string)
}

// HasHTML is implemented by widgets showing markup.
type HasHTML interface {
	HTML() string
	SetHTML(s string)
}

// HasURL is implemented by images and links.
type HasURL interface {
	URL() string
	SetURL(s string)
}

// Funcs adapts a getter and a setter to TakesValue.
func Funcs[T any](get func() T, set func(T)) TakesValue[T] {
	return funcs[T]{get: get, set: set}
}

type funcs[T any] struct {
	get func() T
	set func(T)
}

func (f funcs[T]) Value() T     { return f.get() }
func (f funcs[T]) SetValue(v T) { f.set(v) }

// TextOf views the text of target as a value.
func TextOf(target HasText) TakesValue[string] {
	return Funcs(target.Text, target.SetText)
}

// HTMLOf views the markup of target as a value.
func HTMLOf(target HasHTML) TakesValue[string] {
	return Funcs(target.HTML, target.SetHTML)
}

// URLOf views the URL of target as a value.
func URLOf(target HasURL) TakesValue[string] {
	return Funcs(target.URL, target.SetURL)
}
