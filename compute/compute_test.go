package compute_test

import (
	"context"
	"sort"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/disparity/compute"
	"go.viam.com/disparity/compute/emulated"
)

func TestErrorCodes(t *testing.T) {
	err := compute.NewError("create buffer", compute.CodeMemAllocationFailure, "out of %s", "memory")
	test.That(t, err.Error(), test.ShouldContainSubstring, "MEM_OBJECT_ALLOCATION_FAILURE")
	test.That(t, err.Error(), test.ShouldContainSubstring, "(-4)")
	test.That(t, err.Error(), test.ShouldContainSubstring, "out of memory")

	wrapped := errors.Wrap(err, "building estimator")
	test.That(t, compute.CodeOf(wrapped), test.ShouldEqual, compute.CodeMemAllocationFailure)
	test.That(t, compute.CodeOf(nil), test.ShouldEqual, compute.CodeSuccess)
	test.That(t, compute.CodeOf(errors.New("plain")), test.ShouldEqual, compute.CodeExecutionFailure)
	test.That(t, compute.ErrorCode(-1000).String(), test.ShouldEqual, "UNKNOWN(-1000)")
}

func TestRange(t *testing.T) {
	r := compute.Range3D(3, 2, 4)
	test.That(t, r.Size(), test.ShouldEqual, 24)
	test.That(t, r.Valid(), test.ShouldBeTrue)
	test.That(t, r.Item(0), test.ShouldResemble, compute.WorkItem{})
	test.That(t, r.Item(4), test.ShouldResemble, compute.WorkItem{X: 1, Y: 1})
	test.That(t, r.Item(23), test.ShouldResemble, compute.WorkItem{X: 2, Y: 1, Z: 3})
	test.That(t, compute.Range2D(0, 5).Valid(), test.ShouldBeFalse)
	test.That(t, compute.Range1D(7).String(), test.ShouldEqual, "[7 1 1]")
}

func TestCheckArgs(t *testing.T) {
	spec := compute.KernelSpec{
		Name: "scale",
		Args: []compute.ArgKind{compute.ArgFloat32Buffer, compute.ArgFloat},
		Func: func(*compute.Args, compute.WorkItem) {},
	}
	err := spec.CheckArgs([]compute.Arg{compute.FloatArg(1)})
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeInvalidKernelArgs)

	err = spec.CheckArgs([]compute.Arg{compute.IntArg(1), compute.FloatArg(1)})
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeInvalidKernelArgs)

	err = spec.CheckArgs([]compute.Arg{{Kind: compute.ArgFloat32Buffer}, compute.FloatArg(1)})
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeInvalidMemObject)
}

func TestPlatform(t *testing.T) {
	logger := golog.NewTestLogger(t)
	platform := compute.NewPlatform(logger)
	test.That(t, platform.HasDevices(), test.ShouldBeTrue)
	test.That(t, platform.DeviceNames(), test.ShouldContain, emulated.DriverName)

	dev, err := platform.OpenDevice(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Name(), test.ShouldEqual, emulated.DriverName)
	test.That(t, dev.Close(), test.ShouldBeNil)

	_, err = platform.OpenDevice(context.Background(), "quantum")
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeDeviceNotFound)

	empty := compute.NewEmptyPlatform(logger)
	test.That(t, empty.HasDevices(), test.ShouldBeFalse)
	_, err = empty.OpenDevice(context.Background(), "")
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeDeviceNotFound)
}

func TestRegistry(t *testing.T) {
	ctor := func(ctx context.Context, logger golog.Logger) (compute.Device, error) {
		return nil, compute.NewError("open", compute.CodeOutOfResources, "busy")
	}
	compute.RegisterDevice("broken", compute.DeviceRegistration{Constructor: ctor})
	defer compute.DeregisterDevice("broken")

	reg := compute.LookupDevice("broken")
	test.That(t, reg, test.ShouldNotBeNil)
	test.That(t, reg.RegistrarLoc, test.ShouldContainSubstring, "compute_test.go")
	test.That(t, compute.LookupDevice("nope"), test.ShouldBeNil)

	test.That(t, func() {
		compute.RegisterDevice("broken", compute.DeviceRegistration{Constructor: ctor})
	}, test.ShouldPanic)
	test.That(t, func() {
		compute.RegisterDevice("nil", compute.DeviceRegistration{})
	}, test.ShouldPanic)

	platform := compute.NewPlatform(golog.NewTestLogger(t))
	_, err := platform.OpenDevice(context.Background(), "broken")
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeOutOfResources)

	names := compute.RegisteredDevices()
	test.That(t, names, test.ShouldContain, "broken")
	test.That(t, sort.StringsAreSorted(names), test.ShouldBeTrue)

	// devices registered after the snapshot are not visible to it
	compute.RegisterDevice("late", compute.DeviceRegistration{Constructor: ctor})
	defer compute.DeregisterDevice("late")
	test.That(t, platform.DeviceNames(), test.ShouldNotContain, "late")
	_, err = platform.OpenDevice(context.Background(), "late")
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeDeviceNotFound)
}

type bufferID int

const (
	bufA bufferID = iota
	bufB
	bufC
)

func TestBufferRegistry(t *testing.T) {
	logger := golog.NewTestLogger(t)
	dev := emulated.NewDevice("test", emulated.Options{MemoryLimit: 1000}, logger)
	defer dev.Close()

	reg, err := compute.NewBufferRegistry(dev, []compute.BufferSpec[bufferID]{
		{ID: bufA, Name: "a", Kind: compute.Float32, Len: 100},
		{ID: bufB, Name: "b", Kind: compute.Uint8, Len: 100},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg.Len(), test.ShouldEqual, 2)
	test.That(t, reg.Bytes(), test.ShouldEqual, 500)
	test.That(t, reg.Name(bufB), test.ShouldEqual, "b")
	test.That(t, reg.Get(bufA).Len(), test.ShouldEqual, 100)
	test.That(t, func() { reg.Get(bufC) }, test.ShouldPanic)
	test.That(t, dev.LiveBuffers(), test.ShouldEqual, 2)

	test.That(t, reg.Release(), test.ShouldBeNil)
	test.That(t, reg.Release(), test.ShouldBeNil)
	test.That(t, dev.LiveBuffers(), test.ShouldEqual, 0)
	test.That(t, dev.MemoryUsed(), test.ShouldEqual, 0)

	// the third buffer does not fit, the first two must be released again
	_, err = compute.NewBufferRegistry(dev, []compute.BufferSpec[bufferID]{
		{ID: bufA, Name: "a", Kind: compute.Float32, Len: 100},
		{ID: bufB, Name: "b", Kind: compute.Float32, Len: 100},
		{ID: bufC, Name: "c", Kind: compute.Float32, Len: 100},
	})
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeMemAllocationFailure)
	test.That(t, err.Error(), test.ShouldContainSubstring, "allocate c")
	test.That(t, dev.LiveBuffers(), test.ShouldEqual, 0)

	_, err = compute.NewBufferRegistry(dev, []compute.BufferSpec[bufferID]{
		{ID: bufA, Name: "a", Kind: compute.Float32, Len: 1},
		{ID: bufA, Name: "again", Kind: compute.Float32, Len: 1},
	})
	test.That(t, compute.CodeOf(err), test.ShouldEqual, compute.CodeInvalidValue)
	test.That(t, dev.LiveBuffers(), test.ShouldEqual, 0)
}
