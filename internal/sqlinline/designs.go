package sqlinline

const QInsertGeneratedDesign = `--sql be8037d8-6e8e-484a-9379-f0de9f568776
insert into generated_designs (id, user_id, prompt, styles, body_parts, color_preference, size_preference, provider, model, image_base64, image_mime, created_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text[], $4::text[], $5::text, $6::text, $7::text, $8::text, $9::text, $10::text, now())
returning id;
`

const QSelectGeneratedDesignsByUser = `--sql 7597ffd2-e3a5-401f-8f94-6af1064242ef
select id, prompt, styles, body_parts, provider, model, image_base64, image_mime, created_at
from generated_designs
where user_id = $1::text
order by created_at desc
limit $2::int;
`

const QSelectGeneratedDesignByID = `--sql 82443729-806c-46fb-b797-e65efdc96a54
select id, user_id, prompt, styles, body_parts, provider, model, image_base64, image_mime, created_at
from generated_designs
where id = $1::uuid;
`

const QInsertStyleVariant = `--sql 75639ac4-2d41-4c33-83dd-9ee25ac36fc8
insert into design_style_variants (id, design_id, style, image_base64, image_mime, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, $4::text, now());
`

const QSelectStyleVariantsByDesign = `--sql 09fb5b0f-7bfe-41d5-a075-5d475cbcb222
select style, image_base64, image_mime
from design_style_variants
where design_id = $1::uuid
order by style;
`
