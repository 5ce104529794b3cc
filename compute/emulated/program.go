package emulated

import (
	"go.viam.com/disparity/compute"
)

type program struct {
	dev     *Device
	name    string
	kernels map[string]*kernel
}

func (p *program) Kernel(name string) (compute.Kernel, error) {
	k, ok := p.kernels[name]
	if !ok {
		return nil, compute.NewError("create kernel", compute.CodeInvalidKernelName, "program %s has no kernel %q", p.name, name)
	}
	return k, nil
}

func (p *program) Release() error {
	p.kernels = map[string]*kernel{}
	return nil
}

type kernel struct {
	prog *program
	spec compute.KernelSpec
}

func (k *kernel) Name() string {
	return k.spec.Name
}

func (k *kernel) Spec() compute.KernelSpec {
	return k.spec
}
