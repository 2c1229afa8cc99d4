package observer

import (
	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// RegisterFactories registers the observer constructor. The constructor
// needs the *Manager as factory.Args.Context and fails without it.
func RegisterFactories(r *factory.Registry) error {
	return r.Register(subject.FactoryCore, InstanceObserver, func(args factory.Args) subject.Subject {
		m, ok := args.Context.(*Manager)
		if !ok || m == nil {
			return nil
		}
		return m.NewObserver(args.InstanceName)
	})
}
