package provider

import "github.com/openlegaldata/oldp-ingestor/internal/model"

// registerBuiltins wires every source of this tool into r
func registerBuiltins(r *Registry) {
	r.RegisterLaws("dummy", model.Source{}, func(o Options) (LawProvider, error) {
		return NewDummyLawProvider(o.Path)
	})
	r.RegisterLaws("ris", risSource, func(o Options) (LawProvider, error) {
		return NewRISLawProvider(o), nil
	})

	r.RegisterCases("dummy", model.Source{}, func(o Options) (CaseProvider, error) {
		return NewDummyCaseProvider(o.Path)
	})
	cases := []struct {
		name   string
		source model.Source
		build  func(Options) CaseProvider
	}{
		{"ris", risSource, func(o Options) CaseProvider { return NewRISCaseProvider(o) }},
		{"rii", riiSource, func(o Options) CaseProvider { return NewRIICaseProvider(o) }},
		{"by", bySource, func(o Options) CaseProvider { return NewBYCaseProvider(o) }},
		{"nrw", nrwSource, func(o Options) CaseProvider { return NewNRWCaseProvider(o) }},
		{"ns", nsSource, func(o Options) CaseProvider { return NewNSCaseProvider(o) }},
		{"eu", eurlexSource, func(o Options) CaseProvider { return NewEUCaseProvider(o) }},
		{"hb", hbSource, func(o Options) CaseProvider { return NewHBCaseProvider(o) }},
		{"sn", esamosSource, func(o Options) CaseProvider { return NewESAMOSCaseProvider(o) }},
		{"sn-ovg", snOVGSource, func(o Options) CaseProvider { return NewSNOVGCaseProvider(o) }},
		{"sn-verfgh", snVerfGHSource, func(o Options) CaseProvider { return NewSNVerfGHCaseProvider(o) }},
	}
	for _, c := range cases {
		r.RegisterCases(c.name, c.source, func(o Options) (CaseProvider, error) {
			return c.build(o), nil
		})
	}

	for _, portal := range JurisPortals {
		r.RegisterCases(portal.Key, portal.Source(), func(o Options) (CaseProvider, error) {
			return NewJurisCaseProvider(portal, o), nil
		})
	}
}
