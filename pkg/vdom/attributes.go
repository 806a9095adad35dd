package vdom

import (
	"fmt"
	"strings"
)

// refProp is the attribute name that binds a reference handle.
const refProp = "ref"

func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// AttrOf creates an arbitrary attribute. A nil value removes the attribute
// when patching; an empty string sets it to the empty value.
func AttrOf(key string, value any) Attr { return attr(key, value) }

// ID sets the id attribute.
func ID(id string) Attr { return attr("id", id) }

// Class sets the class attribute, joining multiple classes with spaces.
func Class(classes ...string) Attr { return attr("class", strings.Join(classes, " ")) }

// ClassIf adds the class only if condition is true.
func ClassIf(condition bool, class string) Attr {
	if condition {
		return Class(class)
	}
	return Attr{}
}

// StyleAttr sets the style attribute.
func StyleAttr(style string) Attr { return attr("style", style) }

// Data creates a data-* attribute: Data("id", "123") renders data-id="123".
func Data(key, value string) Attr { return attr("data-"+key, value) }

// Role sets the role attribute.
func Role(role string) Attr { return attr("role", role) }

// AriaLabel sets the aria-label attribute.
func AriaLabel(label string) Attr { return attr("aria-label", label) }

// AriaBusy sets the aria-busy attribute.
func AriaBusy(busy bool) Attr { return attr("aria-busy", fmt.Sprint(busy)) }

// TitleAttr sets the title attribute.
func TitleAttr(title string) Attr { return attr("title", title) }

// Hidden sets the hidden boolean attribute.
func Hidden() Attr { return attr("hidden", true) }

// TabIndex sets the tabindex attribute.
func TabIndex(index int) Attr { return attr("tabindex", index) }

// Href sets the href attribute.
func Href(url string) Attr { return attr("href", url) }

// Src sets the src attribute.
func Src(url string) Attr { return attr("src", url) }

// Alt sets the alt attribute.
func Alt(text string) Attr { return attr("alt", text) }

// Name sets the name attribute.
func Name(name string) Attr { return attr("name", name) }

// Value sets the value attribute.
func Value(value string) Attr { return attr("value", value) }

// Type sets the type attribute.
func Type(t string) Attr { return attr("type", t) }

// Placeholder sets the placeholder attribute.
func Placeholder(text string) Attr { return attr("placeholder", text) }

// For sets the for attribute of a label.
func For(id string) Attr { return attr("for", id) }

// Disabled sets the disabled boolean attribute.
func Disabled() Attr { return attr("disabled", true) }

// DisabledIf sets disabled to the condition. False removes the attribute.
func DisabledIf(condition bool) Attr { return attr("disabled", condition) }

// Checked sets the checked boolean attribute.
func Checked() Attr { return attr("checked", true) }

// Selected sets the selected boolean attribute.
func Selected() Attr { return attr("selected", true) }

// Required sets the required boolean attribute.
func Required() Attr { return attr("required", true) }

// Key creates a reconciliation key. The key is formatted with %v.
func Key(key any) Attr {
	return attr("key", fmt.Sprintf("%v", key))
}

// UseRef binds a reference handle to the element. The renderer writes the
// live node into the handle on mount and clears it on unmount; the handle
// never appears as a markup attribute.
func UseRef(ref NodeRef) Attr {
	return attr(refProp, ref)
}
