package pdfmulti_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/alnah/go-pdfmulti"
)

// Example shows that empty content aborts without launching a browser.
func Example() {
	conv, err := pdfmulti.NewConverter()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer conv.Close()

	_, err = conv.Convert(context.Background(), pdfmulti.Input{HTML: ""})
	fmt.Println(errors.Is(err, pdfmulti.ErrEmptyContent))
	fmt.Printf("%+v\n", conv.Stats())
	// Output:
	// true
	// {Invocations:1 Staged:0 Released:0 Done:0 Failed:0 Aborted:1}
}

// ExampleDeriveFileName shows how output names are derived from content.
func ExampleDeriveFileName() {
	fmt.Println(pdfmulti.DeriveFileName("<title>Invoice</title><p>Total: 42</p>"))
	fmt.Println(pdfmulti.DeriveFileName("<p>No title here</p>"))
	// Output:
	// Invoice
	// document
}

// ExampleBuildConfig shows the fixed rendering configuration.
func ExampleBuildConfig() {
	cfg := pdfmulti.BuildConfig("Report")
	fmt.Println(cfg.FileName, cfg.Format, cfg.Orientation, cfg.Unit)
	fmt.Println(cfg.Margins.Slice(), cfg.Image.Quality, cfg.Scale)
	fmt.Println(cfg.PageBreak)
	// Output:
	// Report.pdf a4 portrait mm
	// [10 10 20 10] 0.98 2
	// [avoid-all css legacy]
}

// ExampleSession shows that triggering a session without content is a no-op.
func ExampleSession() {
	conv, err := pdfmulti.NewConverter()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer conv.Close()

	sess := pdfmulti.NewSession(conv, nil, pdfmulti.WithSingleFlight())
	defer sess.Close()

	result, err := sess.Trigger(context.Background())
	fmt.Println(result == nil, err)
	// Output: true <nil>
}
