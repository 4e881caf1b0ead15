package manifest

import "fmt"

// decodeManifest walks a generic YAML/JSON document (already unmarshalled
// into map[string]any) into a typed Manifest. Manual decoding, rather
// than struct tags, is used because MappingRule/EventMapRule are tagged
// unions whose shape depends on a sibling "type"/"emit" field — exactly
// the kind of dispatch the teacher's config.Manager never needed, but
// that this library's richer schema requires.
func decodeManifest(raw map[string]any) (*Manifest, error) {
	m := &Manifest{
		Providers: make(map[string]Provider),
		Models:    make(map[string]Model),
	}

	m.Version, _ = asString(raw["version"])

	if meta, ok := asMap(raw["metadata"]); ok {
		m.Metadata = meta
	}

	if schema, ok := asMap(raw["standard_schema"]); ok {
		m.StandardSchema = StandardSchema{
			Parameters:   asStringSlice(schema["parameters"]),
			Capabilities: asStringSlice(schema["capabilities"]),
		}
	}

	providers, ok := asMap(raw["providers"])
	if !ok {
		return nil, fmt.Errorf("manifest: %q must be an object", "providers")
	}

	for name, v := range providers {
		pm, ok := asMap(v)
		if !ok {
			return nil, fmt.Errorf("manifest: providers.%s must be an object", name)
		}

		provider, err := decodeProvider(name, pm)
		if err != nil {
			return nil, err
		}

		m.Providers[name] = provider
	}

	models, ok := asMap(raw["models"])
	if !ok {
		return nil, fmt.Errorf("manifest: %q must be an object", "models")
	}

	for id, v := range models {
		mm, ok := asMap(v)
		if !ok {
			return nil, fmt.Errorf("manifest: models.%s must be an object", id)
		}

		model, err := decodeModel(id, mm)
		if err != nil {
			return nil, err
		}

		m.Models[id] = model
	}

	return m, nil
}

func decodeProvider(name string, raw map[string]any) (Provider, error) {
	p := Provider{Name: name}

	if authRaw, ok := asMap(raw["auth"]); ok {
		auth, err := decodeAuth(name, authRaw)
		if err != nil {
			return p, err
		}

		p.Auth = auth
	}

	if buRaw, ok := asMap(raw["base_url"]); ok {
		p.BaseURL = BaseURLConfig{}
		p.BaseURL.Static, _ = asString(buRaw["static"])
		p.BaseURL.Template, _ = asString(buRaw["template"])

		if vars, ok := asMap(buRaw["connection_vars"]); ok {
			p.BaseURL.ConnectionVars = make(map[string]string, len(vars))
			for k, v := range vars {
				s, _ := asString(v)
				p.BaseURL.ConnectionVars[k] = s
			}
		}
	}

	if tag, ok := asString(raw["payload_format"]); ok {
		p.PayloadFormat = parsePayloadFormat(tag)
	}

	if tag, ok := asString(raw["response_format"]); ok {
		p.ResponseFormat = parsePayloadFormat(tag)
	} else {
		p.ResponseFormat = p.PayloadFormat
	}

	if pmRaw, ok := asMap(raw["parameter_mapping"]); ok {
		p.ParameterMapping = make(map[string]MappingRule, len(pmRaw))

		for canonicalName, v := range pmRaw {
			ruleRaw, ok := asMap(v)
			if !ok {
				return p, fmt.Errorf("manifest: providers.%s.parameter_mapping.%s must be an object", name, canonicalName)
			}

			rule, err := decodeMappingRule(fmt.Sprintf("providers.%s.parameter_mapping.%s", name, canonicalName), ruleRaw)
			if err != nil {
				return p, err
			}

			p.ParameterMapping[canonicalName] = rule
		}
	}

	if rpRaw, ok := asMap(raw["response_paths"]); ok {
		p.ResponsePaths = make(map[string]string, len(rpRaw))
		for k, v := range rpRaw {
			s, _ := asString(v)
			p.ResponsePaths[k] = s
		}
	}

	if rmRaw, ok := asMap(raw["role_mapping"]); ok {
		p.RoleMapping = make(map[string]string, len(rmRaw))
		for k, v := range rmRaw {
			s, _ := asString(v)
			p.RoleMapping[k] = s
		}
	}

	if sRaw, ok := asMap(raw["streaming"]); ok {
		streaming, err := decodeStreamingConfig(fmt.Sprintf("providers.%s.streaming", name), sRaw)
		if err != nil {
			return p, err
		}

		p.Streaming = streaming
	}

	if fRaw, ok := asMap(raw["features"]); ok {
		p.Features = ProviderFeatures{
			MultiCandidatePolicy: first(asString(fRaw["multi_candidate_policy"])),
			UploadThresholdBytes: asInt64(fRaw["upload_threshold_bytes"], defaultUploadThresholdBytes),
		}

		if epRaw, ok := asMap(fRaw["error_paths"]); ok {
			p.Features.ErrorPaths = make(map[string]string, len(epRaw))
			for k, v := range epRaw {
				s, _ := asString(v)
				p.Features.ErrorPaths[k] = s
			}
		}
	} else {
		p.Features.UploadThresholdBytes = defaultUploadThresholdBytes
	}

	p.Capabilities = asStringSlice(raw["capabilities"])

	return p, nil
}

// defaultUploadThresholdBytes is the Open Question default documented in
// DESIGN.md: local image/audio files at or above 1 MiB are multipart
// uploaded rather than inlined as base64.
const defaultUploadThresholdBytes = 1 << 20

func decodeAuth(providerName string, raw map[string]any) (AuthConfig, error) {
	tag, _ := asString(raw["type"])

	a := AuthConfig{}

	switch tag {
	case "bearer_env_var", "":
		a.Kind = AuthBearerEnvVar
	case "api_key_header":
		a.Kind = AuthAPIKeyHeader
	case "query_param":
		a.Kind = AuthQueryParam
	case "oauth2":
		a.Kind = AuthOAuth2
	case "platform_credentials":
		a.Kind = AuthPlatformCredentials
	default:
		return a, fmt.Errorf("manifest: providers.%s.auth.type %q is not recognised", providerName, tag)
	}

	a.EnvVar, _ = asString(raw["env_var"])
	a.Header, _ = asString(raw["header"])
	a.QueryParam, _ = asString(raw["query_param"])

	if extra, ok := asMap(raw["extra"]); ok {
		a.Extra = make(map[string]string, len(extra))
		for k, v := range extra {
			s, _ := asString(v)
			a.Extra[k] = s
		}
	}

	return a, nil
}

func parsePayloadFormat(tag string) PayloadFormat {
	switch tag {
	case "openai_style":
		return PayloadOpenAIStyle
	case "anthropic_style":
		return PayloadAnthropicStyle
	case "gemini_style":
		return PayloadGeminiStyle
	case "cohere_native":
		return PayloadCohereNative
	default:
		return PayloadCustom
	}
}

func decodeMappingRule(path string, raw map[string]any) (MappingRule, error) {
	tag, _ := asString(raw["type"])

	r := MappingRule{}

	switch tag {
	case "direct", "":
		r.Kind = RuleDirect
		r.TargetPath, _ = asString(raw["target_path"])
	case "conditional":
		r.Kind = RuleConditional

		condsRaw, _ := raw["conditions"].([]any)
		for i, cv := range condsRaw {
			cm, ok := asMap(cv)
			if !ok {
				return r, fmt.Errorf("manifest: %s.conditions[%d] must be an object", path, i)
			}

			clause := ConditionalClause{}
			clause.Condition, _ = asString(cm["condition"])
			clause.TargetPath, _ = asString(cm["target_path"])

			if tRaw, ok := asMap(cm["transform"]); ok {
				ts, err := decodeTransformSpec(fmt.Sprintf("%s.conditions[%d].transform", path, i), tRaw)
				if err != nil {
					return r, err
				}

				clause.Transform = &ts
			}

			r.Conditions = append(r.Conditions, clause)
		}
	case "transform":
		r.Kind = RuleTransform
		r.TargetPath, _ = asString(raw["target_path"])

		tRaw, ok := asMap(raw["transform"])
		if !ok {
			return r, fmt.Errorf("manifest: %s.transform must be an object", path)
		}

		ts, err := decodeTransformSpec(path+".transform", tRaw)
		if err != nil {
			return r, err
		}

		r.Transform = ts
	default:
		return r, fmt.Errorf("manifest: %s.type %q is not recognised", path, tag)
	}

	return r, nil
}

func decodeTransformSpec(path string, raw map[string]any) (TransformSpec, error) {
	kind, _ := asString(raw["kind"])

	ts := TransformSpec{}

	switch kind {
	case "scale":
		ts.Kind = TransformScale
	case "format":
		ts.Kind = TransformFormat
	case "enum_map":
		ts.Kind = TransformEnumMap
	case "type_cast":
		ts.Kind = TransformTypeCast
	default:
		return ts, fmt.Errorf("manifest: %s.kind %q is not recognised", path, kind)
	}

	if params, ok := asMap(raw["params"]); ok {
		ts.Params = params
	}

	return ts, nil
}

func decodeStreamingConfig(path string, raw map[string]any) (StreamingConfig, error) {
	sc := StreamingConfig{}

	sc.EventFormat, _ = asString(raw["event_format"])
	sc.FrameSelector, _ = asString(raw["frame_selector"])
	sc.StopCondition, _ = asString(raw["stop_condition"])
	sc.ExtraMetadataPath, _ = asString(raw["extra_metadata_path"])
	sc.ContentPath, _ = asString(raw["content_path"])
	sc.ToolCallPath, _ = asString(raw["tool_call_path"])
	sc.Delimiter, _ = asString(raw["delimiter"])
	sc.Terminator, _ = asString(raw["terminator"])

	if accRaw, ok := asMap(raw["accumulator"]); ok {
		acc := AccumulatorConfig{}
		acc.KeyPath, _ = asString(accRaw["key_path"])
		acc.FlushOn, _ = asString(accRaw["flush_on"])
		sc.Accumulator = &acc
	}

	if candRaw, ok := asMap(raw["candidate"]); ok {
		cand := CandidateConfig{}
		cand.CandidateIDPath, _ = asString(candRaw["candidate_id_path"])
		cand.FanOut, _ = asBool(candRaw["fan_out"])
		sc.Candidate = &cand
	}

	eventMapRaw, _ := raw["event_map"].([]any)
	for i, v := range eventMapRaw {
		em, ok := asMap(v)
		if !ok {
			return sc, fmt.Errorf("manifest: %s.event_map[%d] must be an object", path, i)
		}

		rule := EventMapRule{}
		rule.Match, _ = asString(em["match"])

		emitTag, _ := asString(em["emit"])

		kind, err := parseEmitKind(emitTag)
		if err != nil {
			return sc, fmt.Errorf("manifest: %s.event_map[%d]: %w", path, i, err)
		}

		rule.Emit = kind

		if fields, ok := asMap(em["fields"]); ok {
			rule.Fields = make(map[string]string, len(fields))
			for k, fv := range fields {
				s, _ := asString(fv)
				rule.Fields[k] = s
			}
		}

		sc.EventMap = append(sc.EventMap, rule)
	}

	return sc, nil
}

func parseEmitKind(tag string) (EmitKind, error) {
	switch tag {
	case "partial_content_delta":
		return EmitPartialContentDelta, nil
	case "partial_tool_call":
		return EmitPartialToolCall, nil
	case "tool_call_started":
		return EmitToolCallStarted, nil
	case "tool_call_ended":
		return EmitToolCallEnded, nil
	case "thinking_delta":
		return EmitThinkingDelta, nil
	case "metadata":
		return EmitMetadata, nil
	case "finish":
		return EmitFinish, nil
	case "stream_end":
		return EmitStreamEnd, nil
	default:
		return 0, fmt.Errorf("emit kind %q is not recognised", tag)
	}
}

func decodeModel(id string, raw map[string]any) (Model, error) {
	m := Model{}

	m.Provider, _ = asString(raw["provider"])
	m.ProviderModelID, _ = asString(raw["provider_model_id"])
	m.ContextWindow = int(asInt64(raw["context_window"], 0))
	m.Capabilities = asStringSlice(raw["capabilities"])

	if pr, ok := asMap(raw["pricing"]); ok {
		p := Pricing{}
		p.PromptPerMillion, _ = asFloat64(pr["prompt_per_million"])
		p.CompletionPerMillion, _ = asFloat64(pr["completion_per_million"])
		m.Pricing = &p
	}

	if ov, ok := asMap(raw["overrides"]); ok {
		m.Overrides = ov
	}

	if m.Provider == "" {
		return m, fmt.Errorf("manifest: models.%s.provider is required", id)
	}

	return m, nil
}

func first(s string, _ bool) string { return s }
