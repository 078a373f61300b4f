// Package bind connects properties to the widgets that display and edit them.
//
// Widgets themselves live outside this module. They are reached through the
// small interfaces defined here (TakesValue, HasText, HasHTML, HasURL and
// TextList), so a view only needs to provide a getter and a setter:
//
//	b, err := bind.Bind(name, bind.TextOf(nameBox))
//	...
//	nameBox.OnInput(func() { _ = b.Push() })
//
// Field describes one declared field of a view for the markup generator that
// produces those views.
package bind
