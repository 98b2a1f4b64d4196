package mgmt

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"
)

// RuntimeDomain is the domain of the objects registered by RegisterRuntime.
const RuntimeDomain = "go.runtime"

const memoryUsageType = "go.runtime.MemoryUsage"

// RegisterRuntime registers objects describing the current Go process on
// srv:
//
//	go.runtime:type=Runtime
//	go.runtime:type=Memory
//	go.runtime:type=GarbageCollector,name=GC
//	go.runtime:type=Threading
func RegisterRuntime(srv *Server) error {
	started := time.Now()
	host, _ := os.Hostname()

	objects := map[string]*Object{
		"type=Runtime":                  runtimeObject(started, host),
		"type=Memory":                   memoryObject(),
		"type=GarbageCollector,name=GC": gcObject(),
		"type=Threading":                threadingObject(),
	}
	for props, obj := range objects {
		name, err := ParseObjectName(RuntimeDomain + ":" + props)
		if err != nil {
			return err
		}
		if err := srv.Register(name, obj); err != nil {
			return err
		}
	}
	return nil
}

func runtimeObject(started time.Time, host string) *Object {
	return NewObject().
		Static("Name", TypeString, String(fmt.Sprintf("%d@%s", os.Getpid(), host))).
		Static("Pid", TypeLong, Long(int64(os.Getpid()))).
		Static("SpecName", TypeString, String("Go Runtime")).
		Static("GoVersion", TypeString, String(runtime.Version())).
		Static("GOOS", TypeString, String(runtime.GOOS)).
		Static("GOARCH", TypeString, String(runtime.GOARCH)).
		Static("StartTime", TypeDate, Date(started)).
		Static("InputArguments", TypeStringArray, Strings(os.Args[1:]...)).
		Attribute(AttributeInfo{Name: "NumCPU", Type: TypeInt}, func(context.Context) (Value, error) {
			return Int(int32(runtime.NumCPU())), nil
		}).
		Attribute(AttributeInfo{Name: "Uptime", Type: TypeLong, Description: "milliseconds since start"}, func(context.Context) (Value, error) {
			return Long(time.Since(started).Milliseconds()), nil
		})
}

func memoryUsage(init, used, committed, max uint64) Composite {
	return Composite{
		TypeName: memoryUsageType,
		Fields: map[string]Value{
			"init":      Long(int64(init)),
			"used":      Long(int64(used)),
			"committed": Long(int64(committed)),
			"max":       Long(int64(max)),
		},
	}
}

func readMemStats() *runtime.MemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &ms
}

func memoryObject() *Object {
	return NewObject().
		Attribute(AttributeInfo{Name: "HeapMemoryUsage", Type: TypeCompositeData}, func(context.Context) (Value, error) {
			ms := readMemStats()
			return memoryUsage(0, ms.HeapAlloc, ms.HeapSys, ms.HeapSys), nil
		}).
		Attribute(AttributeInfo{Name: "NonHeapMemoryUsage", Type: TypeCompositeData}, func(context.Context) (Value, error) {
			ms := readMemStats()
			return memoryUsage(0, ms.StackInuse+ms.MSpanInuse+ms.MCacheInuse, ms.StackSys+ms.MSpanSys+ms.MCacheSys, ms.Sys), nil
		}).
		Attribute(AttributeInfo{Name: "HeapObjects", Type: TypeLong}, func(context.Context) (Value, error) {
			return Long(int64(readMemStats().HeapObjects)), nil
		})
}

// poolUsage renders per-pool memory usage as a tabular value keyed by
// pool name.
func poolUsage(ms *runtime.MemStats) Tabular {
	pools := []struct {
		name      string
		used, sys uint64
	}{
		{"heap", ms.HeapAlloc, ms.HeapSys},
		{"mcache", ms.MCacheInuse, ms.MCacheSys},
		{"mspan", ms.MSpanInuse, ms.MSpanSys},
		{"stack", ms.StackInuse, ms.StackSys},
	}
	rows := make([]Composite, 0, len(pools))
	for _, p := range pools {
		rows = append(rows, Composite{
			TypeName: "go.runtime.MemoryPoolEntry",
			Fields: map[string]Value{
				"key":   String(p.name),
				"value": memoryUsage(0, p.used, p.sys, p.sys),
			},
		})
	}
	return Tabular{TypeName: "go.runtime.MemoryPools", Index: []string{"key"}, Rows: rows}
}

func gcObject() *Object {
	return NewObject().
		Static("Valid", TypeBoolean, Bool(true)).
		Static("MemoryPoolNames", TypeStringArray, Strings("heap", "mcache", "mspan", "stack")).
		Attribute(AttributeInfo{Name: "CollectionCount", Type: TypeLong}, func(context.Context) (Value, error) {
			var st debug.GCStats
			debug.ReadGCStats(&st)
			return Long(st.NumGC), nil
		}).
		Attribute(AttributeInfo{Name: "CollectionTime", Type: TypeLong, Description: "total pause in milliseconds"}, func(context.Context) (Value, error) {
			var st debug.GCStats
			debug.ReadGCStats(&st)
			return Long(st.PauseTotal.Milliseconds()), nil
		}).
		Attribute(AttributeInfo{Name: "PauseNs", Type: TypeLongArray}, func(context.Context) (Value, error) {
			var st debug.GCStats
			debug.ReadGCStats(&st)
			pauses := make([]int64, len(st.Pause))
			for i, p := range st.Pause {
				pauses[i] = p.Nanoseconds()
			}
			return Longs(pauses...), nil
		}).
		Attribute(AttributeInfo{Name: "LastGcInfo", Type: TypeCompositeData}, func(context.Context) (Value, error) {
			var st debug.GCStats
			debug.ReadGCStats(&st)
			ms := readMemStats()
			var last time.Duration
			if len(st.Pause) > 0 {
				last = st.Pause[0]
			}
			end := st.LastGC
			return Composite{
				TypeName: "go.runtime.GcInfo",
				Fields: map[string]Value{
					"id":                  Long(st.NumGC),
					"endTime":             Long(end.UnixMilli()),
					"startTime":           Long(end.Add(-last).UnixMilli()),
					"duration":            Long(last.Milliseconds()),
					"memoryUsageBeforeGc": poolUsage(ms),
					"memoryUsageAfterGc":  poolUsage(ms),
				},
			}, nil
		})
}

func threadingObject() *Object {
	obj := NewObject().
		Attribute(AttributeInfo{Name: "ThreadCount", Type: TypeInt, Description: "live goroutines"}, func(context.Context) (Value, error) {
			return Int(int32(runtime.NumGoroutine())), nil
		}).
		Attribute(AttributeInfo{Name: "GOMAXPROCS", Type: TypeInt}, func(context.Context) (Value, error) {
			return Int(int32(runtime.GOMAXPROCS(0))), nil
		})

	settings := Array{Elem: KindComposite}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			settings.Items = append(settings.Items, Composite{
				TypeName: "go.runtime.BuildSetting",
				Fields: map[string]Value{
					"name":      String(s.Key),
					"value":     String(s.Value),
					"origin":    String("build"),
					"writeable": Bool(false),
				},
			})
		}
	}
	return obj.Static("BuildSettings", TypeCompositeDataArray, settings)
}
