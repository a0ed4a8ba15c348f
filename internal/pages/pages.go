// Package pages binds declarative page definitions to a browser page so that
// every element access goes through the locator fallback chain.
package pages

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"selfheal/internal/locator"
	"selfheal/internal/logging"
)

// ErrUnknownField is returned for a field the page does not define.
var ErrUnknownField = errors.New("unknown field")

// Field lists the locators for one element.
type Field struct {
	Primary string   `yaml:"primary"`
	Backups []string `yaml:"backups,omitempty"`
}

// Definition describes a page: where it lives and how to find its fields.
type Definition struct {
	Name   string           `yaml:"name"`
	URL    string           `yaml:"url,omitempty"`
	Fields map[string]Field `yaml:"fields"`
}

// Validate checks that every field has a primary locator.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("page has no name")
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("page %q defines no fields", d.Name)
	}
	for name, f := range d.Fields {
		if f.Primary == "" {
			return fmt.Errorf("page %q field %q has no primary locator", d.Name, name)
		}
	}
	return nil
}

// FieldNames returns the field names in sorted order.
func (d Definition) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spec returns the resolver input for a field.
func (d Definition) Spec(field string) (locator.Spec, error) {
	f, ok := d.Fields[field]
	if !ok {
		return locator.Spec{}, fmt.Errorf("%w %q on %s", ErrUnknownField, field, d.Name)
	}
	return locator.Spec{
		Primary:  f.Primary,
		Backups:  f.Backups,
		PageName: d.Name,
		Field:    field,
	}, nil
}

// Driver is the browser surface a page object needs.
type Driver interface {
	locator.Capability
	Navigate(ctx context.Context, url string) error
}

// Object is a Definition bound to a live page and a session resolver.
type Object struct {
	def      Definition
	driver   Driver
	resolver *locator.Resolver
}

// Bind creates a page object.
func Bind(def Definition, driver Driver, resolver *locator.Resolver) *Object {
	return &Object{def: def, driver: driver, resolver: resolver}
}

// Open navigates to the page URL.
func (o *Object) Open(ctx context.Context) error {
	if o.def.URL == "" {
		return fmt.Errorf("page %q has no url", o.def.Name)
	}
	logging.BrowserDebug("Opening %s at %s", o.def.Name, o.def.URL)
	return o.driver.Navigate(ctx, o.def.URL)
}

// Locate resolves a field to a validated locator.
func (o *Object) Locate(ctx context.Context, field string) (locator.Outcome, error) {
	spec, err := o.def.Spec(field)
	if err != nil {
		return locator.Outcome{}, err
	}
	return o.resolver.Resolve(ctx, spec)
}

// Fill types value into a field.
func (o *Object) Fill(ctx context.Context, field, value string) error {
	out, err := o.Locate(ctx, field)
	if err != nil {
		return err
	}
	return o.driver.Fill(ctx, out.Locator, value)
}

// Click clicks a field.
func (o *Object) Click(ctx context.Context, field string) error {
	out, err := o.Locate(ctx, field)
	if err != nil {
		return err
	}
	return o.driver.Click(ctx, out.Locator)
}

// Text reads a field's text.
func (o *Object) Text(ctx context.Context, field string) (string, error) {
	out, err := o.Locate(ctx, field)
	if err != nil {
		return "", err
	}
	return o.driver.ReadText(ctx, out.Locator)
}
