package builtins

import (
	"github.com/bplaa-yai/v8m-rb/pkg/heap"
	"github.com/bplaa-yai/v8m-rb/pkg/isolate"
	"github.com/bplaa-yai/v8m-rb/pkg/runtime"
	"github.com/bplaa-yai/v8m-rb/pkg/tagged"
)

// numberConstructor is Number(value). As a constructor it stores the value
// in the wrapper the construct stub allocated.
func numberConstructor(iso *isolate.Isolate, args *NativeArguments) (tagged.Value, error) {
	value := tagged.Zero
	if len(args.Args) > 0 {
		v, err := runtime.NewNumber(iso, runtime.ToNumber(iso.Heap, args.Args[0]))
		if err != nil {
			return 0, err
		}
		value = v
	}
	return wrap(iso, args, value), nil
}

// booleanConstructor is Boolean(value).
func booleanConstructor(iso *isolate.Isolate, args *NativeArguments) (tagged.Value, error) {
	value := iso.Heap.Boolean(runtime.ToBoolean(iso.Heap, args.At(iso, 0)))
	return wrap(iso, args, value), nil
}

func wrap(iso *isolate.Isolate, args *NativeArguments, value tagged.Value) tagged.Value {
	if !args.Construct || iso.Heap.InstanceType(args.Receiver) != heap.JSValueType {
		return value
	}
	iso.Heap.SetField(args.Receiver, heap.JSValueValueOffset, value)
	return args.Receiver
}
