// Package pdfmulti converts HTML fragments with embedded images to paginated
// A4 PDF documents using headless Chrome.
//
// # Quick Start
//
// Create a converter, convert content, and close when done:
//
//	conv, err := pdfmulti.NewConverter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	result, err := conv.Convert(ctx, pdfmulti.Input{
//	    HTML: "<title>Report</title><p>Hello</p>",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(result.Output.FileName, result.PDF, 0644) // Report.pdf
//
// # Conversion Pipeline
//
// Each call to Convert runs these steps strictly in order:
//
//  1. Staging: the content is parsed into a detached tree under an unstyled
//     container (golang.org/x/net/html)
//  2. Waiting for assets: every <img> of the tree must load; the first
//     failure aborts the wait
//  3. Configuring: the file name comes from <title> ("document" when absent)
//     and the rendering configuration is fixed (A4 portrait, margins
//     10/10/20/10 mm, JPEG 0.98, scale 2)
//  4. Rendering via headless Chrome (go-rod), then structural validation
//     of the output (pdfcpu)
//  5. Persisting to Input.Sink when set
//  6. Cleanup: the staged tree is released exactly once on every path
//
// Empty content aborts before step 1 with ErrEmptyContent. Failures wrap
// ErrStage, ErrAssetLoad, ErrRender or ErrPersist.
//
// # Sessions
//
// Session holds content that changes over time and converts the current
// value on each trigger:
//
//	sess := pdfmulti.NewSession(conv, sink, pdfmulti.WithSingleFlight())
//	sess.Update(html)
//	result, err := sess.Trigger(ctx) // ErrBusy while a trigger is in flight
//
// # Parallel Processing
//
// For batch conversion, use ConverterPool to manage multiple browser instances:
//
//	pool := pdfmulti.NewConverterPool(4)
//	defer pool.Close()
//
//	conv, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Release(conv)
//	result, err := conv.Convert(ctx, input)
//
// # Browser
//
// Chrome is launched lazily on the first render. Set ROD_BROWSER_BIN to use
// a pre-installed binary; the sandbox is disabled in CI and containers.
package pdfmulti
