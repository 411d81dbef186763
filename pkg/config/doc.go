/*
Package config resolves the Config struct every component is wired from:
environment variables per spec.md §6.4, layered over an optional
coordkernel.yaml file for settings that are awkward to carry as env vars
(the teacher's own cluster config uses the same env-overrides-file
layering via gopkg.in/yaml.v3).

The Claim Engine, Retention Engine, and Health Assessor never read the
environment directly — Load is the single place that happens, and the
CLI layer threads the resolved Config down as explicit parameters (the
"Global mutable state" rearchitecture spec.md calls for).
*/
package config
