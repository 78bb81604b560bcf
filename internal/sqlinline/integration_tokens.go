package sqlinline

// Provider API keys, one row per provider. The api binary reads the Gemini
// key from here when GEMINI_API_KEY is unset.

const QCreateIntegrationTokens = `--sql 9e2d4a61-0b7f-4c3e-8f15-2a6c9d0e4b73
create table if not exists integration_tokens (
    id uuid primary key default gen_random_uuid(),
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QSelectIntegrationToken = `--sql 4bc12981-c965-4c75-be01-9882999290b2
select token
from integration_tokens
where provider = $1::text;
`

const QUpsertIntegrationToken = `--sql 6bec4ee5-bcf9-4c5f-bed9-a80fe771ba36
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`
