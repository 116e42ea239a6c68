// Package transctl provides an incremental translation engine for structured
// content (HTML and JSON documents).
//
// Transctl extracts translatable strings from a document, shields
// non-translatable spans (placeholders, emails, URLs, glossary terms) from the
// translation provider, reuses previous translations from a persistent
// translation memory and skips whole files whose outputs are already up to
// date according to a content-hash manifest.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/transctl"
//	    "github.com/ZaguanLabs/transctl/cache"
//	    "github.com/ZaguanLabs/transctl/manifest"
//	    "github.com/ZaguanLabs/transctl/processor"
//	    "github.com/ZaguanLabs/transctl/protect"
//	    "github.com/ZaguanLabs/transctl/provider"
//	)
//
//	func main() {
//	    store, _ := cache.Open(".transctl/store.sqlite")
//	    defer store.Close()
//	    m, _ := manifest.Load(".transctl")
//
//	    p := transctl.NewPipeline("en", []string{"de", "fr"},
//	        provider.NewDeepLProvider(provider.DeepLConfig{APIKey: key}),
//	        protect.NewTagProtector("keep"),
//	        transctl.WithMemory(store),
//	        transctl.WithManifest(m),
//	        transctl.WithExtractor(processor.NewHTMLExtractor()),
//	    )
//
//	    result, err := p.Run(context.Background(), resources)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(result.Written)
//	}
package transctl
