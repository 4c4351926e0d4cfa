// Package runtime manages containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and provides base image
// resolution and container creation. Bases are either registry references,
// pulled on first use, or local OCI archives, imported and tagged with a
// deterministic content hash. Resolved images are unpacked for the target
// platform and used to create containers with overlayfs snapshots.
//
// Build containers run an idle task so that steps can be dispatched with
// [Container.Exec] and files moved with [Container.CopyTo] and
// [Container.CopyFrom]. The final filesystem state is committed and written
// out by [Container.Export], which also records the application's image
// configuration (environment, exposed ports, working directory, command).
//
// App containers created with [Runtime.CreateApp] instead run the image's
// own command as a foreground task whose exit code is reported by
// [Container.RunForeground].
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "kilnd")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	src := manifest.Source{Kind: manifest.SourceReference, Value: "docker.io/library/python:3.13-slim"}
//	ctr, err := rt.StartContainer(ctx, src, "build-1", "linux/amd64")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
//
//	result, err := ctr.Exec(ctx, "/bin/sh", "echo hello", nil, "")
//	if err != nil {
//	    return err
//	}
//
//	if err := ctr.Export(ctx, "dist", runtime.ImageConfig{Command: []string{"/entrypoint"}}); err != nil {
//	    return err
//	}
package runtime
