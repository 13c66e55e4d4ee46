// Package factory instantiates pluggable backends (firing log stores,
// metrics sinks) from configuration. A backend is selected by a type string
// and receives its raw settings, which it decodes with Decode.
//
//	var Stores = factory.NewRegistry[firelog.LogStore]()
//
//	Stores.MustRegister("jsonl", func(conf map[string]any) (firelog.LogStore, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return firelog.NewJSONLStore(c.Path)
//	})
//	s, err := Stores.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "firings.jsonl"}})
package factory
